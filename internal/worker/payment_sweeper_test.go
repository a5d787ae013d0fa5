package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/polkiloo/marketplace/internal/domain/model"
	testhelpers "github.com/polkiloo/marketplace/internal/test"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestPaymentSweeperReconcilesStuckAttempts(t *testing.T) {
	facade := &testhelpers.SweeperFacadeStub{
		Batches: [][]model.Payment{{
			{ID: 1, AttemptID: "pay_a", CheckoutRequestID: "ws_CO_a", Status: model.PaymentStatusAwaitingCallback},
			{ID: 2, AttemptID: "pay_b", CheckoutRequestID: "ws_CO_b", Status: model.PaymentStatusAwaitingCallback},
		}},
	}
	sweeper := NewPaymentSweeper(facade, 10*time.Millisecond, 3*time.Minute, 2, 2, testLogger())

	sweeper.Start(context.Background())
	waitFor(t, time.Second, func() bool { return facade.ReconciledCount() == 2 })
	sweeper.Stop()

	if facade.ReconciledCount() != 2 {
		t.Fatalf("expected 2 reconciled attempts, got %d", facade.ReconciledCount())
	}
}

func TestPaymentSweeperSurvivesReconcileErrors(t *testing.T) {
	var calls int32
	facade := &testhelpers.SweeperFacadeStub{
		Batches: [][]model.Payment{{
			{ID: 1, AttemptID: "pay_a", Status: model.PaymentStatusAwaitingCallback},
			{ID: 2, AttemptID: "pay_b", Status: model.PaymentStatusAwaitingCallback},
		}},
		ReconcileFn: func(context.Context, model.Payment) error {
			atomic.AddInt32(&calls, 1)
			return errors.New("provider unavailable")
		},
	}
	sweeper := NewPaymentSweeper(facade, 10*time.Millisecond, 3*time.Minute, 2, 1, testLogger())

	sweeper.Start(context.Background())
	waitFor(t, time.Second, func() bool { return atomic.LoadInt32(&calls) == 2 })
	sweeper.Stop()
}

func TestPaymentSweeperSurvivesFetchErrors(t *testing.T) {
	var calls int32
	facade := &testhelpers.SweeperFacadeStub{
		StuckFn: func(context.Context, time.Duration, int) ([]model.Payment, error) {
			atomic.AddInt32(&calls, 1)
			return nil, errors.New("db down")
		},
	}
	sweeper := NewPaymentSweeper(facade, 10*time.Millisecond, 3*time.Minute, 2, 1, testLogger())

	sweeper.Start(context.Background())
	waitFor(t, time.Second, func() bool { return atomic.LoadInt32(&calls) >= 2 })
	sweeper.Stop()
}

func TestPaymentSweeperStopIsIdempotent(t *testing.T) {
	sweeper := NewPaymentSweeper(&testhelpers.SweeperFacadeStub{}, 10*time.Millisecond, time.Minute, 1, 1, testLogger())
	sweeper.Start(context.Background())
	sweeper.Stop()
	sweeper.Stop()
}

func TestNewPaymentSweeperClampsSizes(t *testing.T) {
	sweeper := NewPaymentSweeper(&testhelpers.SweeperFacadeStub{}, time.Minute, time.Minute, 0, 0, testLogger())
	if sweeper.batchSize != 1 || sweeper.workers != 1 {
		t.Fatalf("expected clamped pool sizes, got batch=%d workers=%d", sweeper.batchSize, sweeper.workers)
	}
}
