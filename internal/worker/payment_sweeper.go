package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/polkiloo/marketplace/internal/domain/model"
)

// MarketplaceFacade exposes the subset of application functionality required by the worker.
type MarketplaceFacade interface {
	StuckPayments(ctx context.Context, olderThan time.Duration, limit int) ([]model.Payment, error)
	ReconcilePayment(ctx context.Context, payment model.Payment) error
}

// PaymentSweeper periodically queries the provider for payment attempts
// whose callback never arrived and settles them concurrently.
type PaymentSweeper struct {
	facade       MarketplaceFacade
	pollInterval time.Duration
	sweepAge     time.Duration
	batchSize    int
	workers      int
	logger       *slog.Logger

	jobs   chan model.Payment
	wg     sync.WaitGroup
	cancel context.CancelFunc
	mu     sync.Mutex
}

// NewPaymentSweeper constructs the sweeper worker pool.
func NewPaymentSweeper(facade MarketplaceFacade, pollInterval, sweepAge time.Duration, batchSize, workers int, logger *slog.Logger) *PaymentSweeper {
	if workers <= 0 {
		workers = 1
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	return &PaymentSweeper{
		facade:       facade,
		pollInterval: pollInterval,
		sweepAge:     sweepAge,
		batchSize:    batchSize,
		workers:      workers,
		logger:       logger,
		jobs:         make(chan model.Payment, batchSize*workers),
	}
}

// Start launches background sweeping.
func (p *PaymentSweeper) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(runCtx)
	}

	p.wg.Add(1)
	go p.dispatch(runCtx)
}

// Stop waits for all workers to finish.
func (p *PaymentSweeper) Stop() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *PaymentSweeper) dispatch(ctx context.Context) {
	defer p.wg.Done()
	defer close(p.jobs)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.fetchAndDispatch(ctx)
		}
	}
}

func (p *PaymentSweeper) fetchAndDispatch(ctx context.Context) {
	payments, err := p.facade.StuckPayments(ctx, p.sweepAge, p.batchSize)
	if err != nil {
		p.logger.Error("fetch stuck payments failed", slog.String("error", err.Error()))
		return
	}
	for _, payment := range payments {
		select {
		case <-ctx.Done():
			return
		case p.jobs <- payment:
		}
	}
}

func (p *PaymentSweeper) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case payment, ok := <-p.jobs:
			if !ok {
				return
			}
			if err := p.facade.ReconcilePayment(ctx, payment); err != nil {
				p.logger.Error("payment reconciliation failed",
					slog.String("attempt_id", payment.AttemptID),
					slog.String("error", err.Error()))
			}
		}
	}
}
