// Package assets administers the tracked asset registry.
package assets

import (
	"context"
	"fmt"
	"strings"

	"github.com/atharvakonge/paper-trading-simulator/internal/cache"
	"github.com/atharvakonge/paper-trading-simulator/internal/models"
	"github.com/atharvakonge/paper-trading-simulator/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	DefaultCandleLimit  = 100
	MaxCandleLimit      = 500
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000
)

var validIntervals = map[string]bool{
	"1m": true, "5m": true, "15m": true, "1h": true, "4h": true, "1d": true,
}

// Feed is what the service needs from the price feed
type Feed interface {
	FetchPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error)
}

type Service struct {
	store   store.Store
	feed    Feed
	candles *cache.Cache
	log     *logrus.Entry
}

func NewService(st store.Store, feed Feed, candles *cache.Cache, log *logrus.Logger) *Service {
	return &Service{
		store:   st,
		feed:    feed,
		candles: candles,
		log:     log.WithField("component", "assets"),
	}
}

func normalize(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

func (s *Service) ListActive(ctx context.Context) ([]models.Asset, error) {
	return s.list(ctx, true)
}

func (s *Service) ListAll(ctx context.Context) ([]models.Asset, error) {
	return s.list(ctx, false)
}

func (s *Service) list(ctx context.Context, activeOnly bool) ([]models.Asset, error) {
	var out []models.Asset
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListAssets(ctx, activeOnly)
		return err
	})
	return out, err
}

func (s *Service) Get(ctx context.Context, id int64) (models.Asset, error) {
	var a models.Asset
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		a, err = tx.GetAsset(ctx, id)
		return err
	})
	return a, err
}

// seedPrice asks the feed for a starting price; zero when the feed cannot answer
func (s *Service) seedPrice(ctx context.Context, symbol string) decimal.Decimal {
	price, err := s.feed.FetchPrice(ctx, symbol)
	if err != nil {
		s.log.WithField("feed_symbol", symbol).WithError(err).Warn("Could not fetch initial price")
		return decimal.Zero
	}
	return price
}

func (s *Service) Create(ctx context.Context, req models.AssetCreate) (models.Asset, error) {
	a := models.Asset{
		Ticker:     normalize(req.Ticker),
		Name:       strings.TrimSpace(req.Name),
		FeedSymbol: normalize(req.FeedSymbol),
		IsActive:   true,
	}
	if a.Ticker == "" || a.Name == "" || a.FeedSymbol == "" {
		return models.Asset{}, fmt.Errorf("%w: ticker, name and feed_symbol are required", models.ErrInvalidArgument)
	}

	// The feed call happens outside the transaction
	a.CurrentPrice = s.seedPrice(ctx, a.FeedSymbol)

	var created models.Asset
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		created, err = tx.CreateAsset(ctx, a)
		return err
	})
	if err != nil {
		return models.Asset{}, err
	}

	s.log.WithFields(logrus.Fields{"ticker": created.Ticker, "feed_symbol": created.FeedSymbol}).Info("Asset created")
	return created, nil
}

func (s *Service) Update(ctx context.Context, id int64, req models.AssetUpdate) (models.Asset, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return models.Asset{}, err
	}

	var newSymbol string
	if req.FeedSymbol != nil {
		newSymbol = normalize(*req.FeedSymbol)
		if newSymbol == "" {
			return models.Asset{}, fmt.Errorf("%w: feed_symbol must not be empty", models.ErrInvalidArgument)
		}
	}
	var reseeded *decimal.Decimal
	if newSymbol != "" && newSymbol != current.FeedSymbol {
		p := s.seedPrice(ctx, newSymbol)
		reseeded = &p
	}

	var updated models.Asset
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		a, err := tx.GetAsset(ctx, id)
		if err != nil {
			return err
		}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return fmt.Errorf("%w: name must not be empty", models.ErrInvalidArgument)
			}
			a.Name = name
		}
		if newSymbol != "" {
			a.FeedSymbol = newSymbol
		}
		if reseeded != nil && reseeded.IsPositive() {
			a.CurrentPrice = *reseeded
		}
		if req.IsActive != nil {
			a.IsActive = *req.IsActive
		}
		updated, err = tx.UpdateAsset(ctx, a)
		return err
	})
	if err != nil {
		return models.Asset{}, err
	}

	s.log.WithField("ticker", updated.Ticker).Info("Asset updated")
	return updated, nil
}

func (s *Service) ToggleActive(ctx context.Context, id int64) (models.Asset, error) {
	var updated models.Asset
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		a, err := tx.GetAsset(ctx, id)
		if err != nil {
			return err
		}
		a.IsActive = !a.IsActive
		updated, err = tx.UpdateAsset(ctx, a)
		return err
	})
	if err != nil {
		return models.Asset{}, err
	}

	s.log.WithFields(logrus.Fields{"ticker": updated.Ticker, "is_active": updated.IsActive}).Info("Asset toggled")
	return updated, nil
}

// DeleteResult reports what a cascade delete removed
type DeleteResult struct {
	Ticker              string `json:"ticker"`
	DeletedHoldings     int64  `json:"deleted_portfolio_items"`
	DeletedTransactions int64  `json:"deleted_transactions"`
	DeletedPricePoints  int64  `json:"deleted_price_history"`
}

// Delete removes the asset and everything that references it: holdings, then ledger entries,
// then price history, then the asset row. Each step is a plain delete-by-asset so reruns are no-ops.
func (s *Service) Delete(ctx context.Context, id int64) (DeleteResult, error) {
	var res DeleteResult
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		a, err := tx.GetAsset(ctx, id)
		if err != nil {
			return err
		}
		res.Ticker = a.Ticker

		if res.DeletedHoldings, err = tx.DeleteHoldingsByAsset(ctx, id); err != nil {
			return err
		}
		if res.DeletedTransactions, err = tx.DeleteTransactionsByAsset(ctx, id); err != nil {
			return err
		}
		if res.DeletedPricePoints, err = tx.DeletePriceHistoryByAsset(ctx, id); err != nil {
			return err
		}
		return tx.DeleteAsset(ctx, id)
	})
	if err != nil {
		return DeleteResult{}, err
	}

	s.log.WithFields(logrus.Fields{
		"ticker":               res.Ticker,
		"deleted_holdings":     res.DeletedHoldings,
		"deleted_transactions": res.DeletedTransactions,
		"deleted_price_points": res.DeletedPricePoints,
	}).Warn("Asset deleted")
	return res, nil
}

// Candles returns OHLCV bars for the asset. A feed failure yields an empty list.
func (s *Service) Candles(ctx context.Context, id int64, interval string, limit int) ([]models.Candle, error) {
	if !validIntervals[interval] {
		return nil, fmt.Errorf("%w: interval must be one of 1m, 5m, 15m, 1h, 4h, 1d", models.ErrInvalidArgument)
	}
	if limit < 1 || limit > MaxCandleLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", models.ErrInvalidArgument, MaxCandleLimit)
	}

	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s:%s:%d", a.FeedSymbol, interval, limit)
	if v, ok := s.candles.Get(key); ok {
		if cached, ok := v.([]models.Candle); ok {
			return cached, nil
		}
	}

	candles, err := s.feed.FetchCandles(ctx, a.FeedSymbol, interval, limit)
	if err != nil {
		s.log.WithFields(logrus.Fields{"ticker": a.Ticker, "interval": interval}).WithError(err).Warn("Candle fetch failed")
		return []models.Candle{}, nil
	}
	s.candles.Set(key, candles)
	return candles, nil
}

// PriceHistory returns the most recent stored prices, newest first
func (s *Service) PriceHistory(ctx context.Context, id int64, limit int) ([]models.PricePoint, error) {
	if limit < 1 || limit > MaxHistoryLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", models.ErrInvalidArgument, MaxHistoryLimit)
	}
	var out []models.PricePoint
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetAsset(ctx, id); err != nil {
			return err
		}
		var err error
		out, err = tx.ListPriceHistory(ctx, id, limit)
		return err
	})
	return out, err
}
