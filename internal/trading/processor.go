package trading

import (
	"context"
	"errors"
	"sync"

	"github.com/atharvakonge/paper-trading-simulator/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ErrProcessorStopped is returned for orders submitted to, or still queued in, a stopped processor
var ErrProcessorStopped = errors.New("trade processor stopped")

// Executor runs a single trade
type Executor interface {
	ExecuteTrade(ctx context.Context, userID int64, ticker string, amount decimal.Decimal, side models.TradeSide) (models.Transaction, error)
}

// Order is a trade waiting for a worker
type Order struct {
	UserID int64
	Ticker string
	Amount decimal.Decimal
	Side   models.TradeSide
}

// Result is what a worker sends back for an Order
type Result struct {
	Transaction models.Transaction
	Err         error
}

type job struct {
	ctx      context.Context
	order    Order
	resultCh chan Result
}

// Processor handles concurrent trade processing with a bounded worker pool.
// Same-user ordering is left to the store's row locks.
type Processor struct {
	exec    Executor
	workers int
	queue   chan job
	stopCh  chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	log     *logrus.Entry

	// enqueueing holds mu for reading; stopped is only set under the write lock
	mu      sync.RWMutex
	stopped bool
}

func NewProcessor(exec Executor, workers, queueSize int, log *logrus.Logger) *Processor {
	if workers < 1 {
		workers = 1
	}
	return &Processor{
		exec:    exec,
		workers: workers,
		queue:   make(chan job, queueSize),
		stopCh:  make(chan struct{}),
		log:     log.WithField("component", "trade_processor"),
	}
}

// Start starts the worker pool
func (p *Processor) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.log.WithField("workers", p.workers).Info("Trade workers started")
}

// Stop stops the workers and fails whatever is still queued
func (p *Processor) Stop() {
	p.once.Do(func() {
		close(p.stopCh)
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()

		p.wg.Wait()
		for {
			select {
			case j := <-p.queue:
				j.resultCh <- Result{Err: ErrProcessorStopped}
			default:
				p.log.Info("Trade processor stopped")
				return
			}
		}
	})
}

// Submit queues the order and waits for its result or for ctx to end
func (p *Processor) Submit(ctx context.Context, order Order) (models.Transaction, error) {
	j := job{ctx: ctx, order: order, resultCh: make(chan Result, 1)}
	if err := p.enqueue(ctx, j); err != nil {
		return models.Transaction{}, err
	}

	select {
	case res := <-j.resultCh:
		return res.Transaction, res.Err
	case <-ctx.Done():
		return models.Transaction{}, ctx.Err()
	}
}

// enqueue never lets a job into the queue after Stop has drained it
func (p *Processor) enqueue(ctx context.Context, j job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrProcessorStopped
	}

	select {
	case p.queue <- j:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopCh:
		return ErrProcessorStopped
	}
}

func (p *Processor) worker(id int) {
	defer p.wg.Done()
	log := p.log.WithField("worker", id)

	for {
		select {
		case <-p.stopCh:
			return
		case j := <-p.queue:
			if err := j.ctx.Err(); err != nil {
				j.resultCh <- Result{Err: err}
				continue
			}
			log.WithFields(logrus.Fields{
				"user_id": j.order.UserID,
				"ticker":  j.order.Ticker,
				"side":    j.order.Side,
			}).Debug("Processing trade")

			tr, err := p.exec.ExecuteTrade(j.ctx, j.order.UserID, j.order.Ticker, j.order.Amount, j.order.Side)
			j.resultCh <- Result{Transaction: tr, Err: err}
		}
	}
}
