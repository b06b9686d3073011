// Package market keeps asset prices in step with the upstream feed.
package market

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atharvakonge/paper-trading-simulator/internal/models"
	"github.com/atharvakonge/paper-trading-simulator/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// PriceFeed is the slice of the feed client the loop needs
type PriceFeed interface {
	FetchPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error)
}

// Publisher receives one market_update per cycle that changed prices
type Publisher interface {
	Broadcast(msg any)
}

type State int32

const (
	Idle State = iota
	Syncing
)

func (s State) String() string {
	if s == Syncing {
		return "syncing"
	}
	return "idle"
}

var feedSymbolPattern = regexp.MustCompile(`^[A-Z0-9]+$`)

// SyncLoop polls the feed on a fixed interval, persists prices and history in one
// transaction per cycle, then publishes the batch.
type SyncLoop struct {
	store        store.Store
	feed         PriceFeed
	pub          Publisher
	interval     time.Duration
	fetchTimeout time.Duration
	log          *logrus.Entry
	now          func() time.Time

	state atomic.Int32
}

func NewSyncLoop(st store.Store, feed PriceFeed, pub Publisher, interval, fetchTimeout time.Duration, log *logrus.Logger) *SyncLoop {
	return &SyncLoop{
		store:        st,
		feed:         feed,
		pub:          pub,
		interval:     interval,
		fetchTimeout: fetchTimeout,
		log:          log.WithField("component", "market_sync"),
		now:          time.Now,
	}
}

func (l *SyncLoop) State() State { return State(l.state.Load()) }

// RunCycle performs one fetch -> persist -> publish pass and returns the committed updates.
// A feed failure is not an error: the cycle is skipped and nil is returned.
func (l *SyncLoop) RunCycle(ctx context.Context) ([]models.PriceUpdate, error) {
	l.state.Store(int32(Syncing))
	defer l.state.Store(int32(Idle))

	var active map[string]string
	if err := l.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		active, err = tx.ActiveFeedSymbols(ctx)
		return err
	}); err != nil {
		return nil, fmt.Errorf("load active assets: %w", err)
	}
	if len(active) == 0 {
		return nil, nil
	}

	bySymbol := make(map[string]string, len(active))
	symbols := make([]string, 0, len(active))
	for ticker, symbol := range active {
		if !feedSymbolPattern.MatchString(symbol) {
			l.log.WithFields(logrus.Fields{"ticker": ticker, "feed_symbol": symbol}).Warn("Skipping invalid feed symbol")
			continue
		}
		bySymbol[symbol] = ticker
		symbols = append(symbols, symbol)
	}
	if len(symbols) == 0 {
		return nil, nil
	}
	sort.Strings(symbols)

	fetchCtx, cancel := context.WithTimeout(ctx, l.fetchTimeout)
	prices, err := l.feed.FetchPrices(fetchCtx, symbols)
	cancel()
	if err != nil {
		if errors.Is(err, models.ErrFeedUnavailable) {
			l.log.WithError(err).Warn("Price feed unavailable, skipping cycle")
			return nil, nil
		}
		return nil, fmt.Errorf("fetch prices: %w", err)
	}

	// Don't write prices fetched after shutdown was requested
	if err := ctx.Err(); err != nil {
		return nil, nil
	}

	now := l.now()
	var updates []models.PriceUpdate
	err = l.store.InTx(ctx, func(tx store.Tx) error {
		updates = updates[:0]
		ids, err := tx.AssetIDsByTicker(ctx)
		if err != nil {
			return err
		}
		for _, symbol := range symbols {
			price, ok := prices[symbol]
			if !ok {
				continue
			}
			ticker := bySymbol[symbol]
			id, ok := ids[ticker]
			if !ok {
				continue
			}
			if err := tx.UpdateAssetPrice(ctx, id, price); err != nil {
				return err
			}
			if err := tx.AppendPriceHistory(ctx, id, price, now); err != nil {
				return err
			}
			updates = append(updates, models.PriceUpdate{Ticker: ticker, Price: price})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("persist prices: %w", err)
	}

	if len(updates) > 0 {
		l.pub.Broadcast(models.NewMarketUpdate(updates))
		l.log.WithField("assets", len(updates)).Debug("Market prices updated")
	}
	return updates, nil
}

// safeCycle runs one cycle and converts panics into logged errors
func (l *SyncLoop) safeCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			l.state.Store(int32(Idle))
			l.log.WithField("panic", r).Error("Sync cycle panicked")
		}
	}()

	if _, err := l.RunCycle(ctx); err != nil && ctx.Err() == nil {
		l.log.WithError(err).Error("Sync cycle failed")
	}
}

// Run executes a cycle immediately and then once per interval until ctx is cancelled.
func (l *SyncLoop) Run(ctx context.Context) {
	l.log.WithField("interval", l.interval.String()).Info("Market sync started")
	defer l.log.Info("Market sync stopped")

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		l.safeCycle(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Task is the handle of a running loop
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Start launches Run in the background
func (l *SyncLoop) Start(parent context.Context) *Task {
	ctx, cancel := context.WithCancel(parent)
	t := &Task{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(t.done)
		l.Run(ctx)
	}()
	return t
}

// Stop cancels the loop and waits for the in-flight cycle to finish
func (t *Task) Stop() {
	t.once.Do(t.cancel)
	<-t.done
}

// Done is closed once the loop has exited
func (t *Task) Done() <-chan struct{} { return t.done }
