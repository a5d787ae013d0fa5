package repository

import (
	"context"
	"time"

	"github.com/polkiloo/marketplace/internal/domain/model"
)

// StockShortfall reports a line item whose stock could not cover the
// ordered quantity at confirmation time.
type StockShortfall struct {
	ProductID int64
	Requested int
	Available int
}

// PaymentRepository describes persistence operations with payment attempts.
// Transition methods are conditional updates: applied is false when the
// attempt was not in the expected state, which callers use to absorb
// duplicate callbacks.
type PaymentRepository interface {
	// CreateAttempt inserts a new attempt in CREATED state. Returns
	// ErrPaymentInFlight when the order already has a non-terminal attempt.
	CreateAttempt(ctx context.Context, payment *model.Payment) (*model.Payment, error)

	GetByAttemptID(ctx context.Context, attemptID string) (*model.Payment, error)
	GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*model.Payment, error)

	// MarkAwaiting moves CREATED -> AWAITING_CALLBACK and stores the
	// provider's checkout request id.
	MarkAwaiting(ctx context.Context, paymentID int64, checkoutRequestID string) (applied bool, err error)

	// Fail moves a non-terminal attempt to FAILED with a reason.
	Fail(ctx context.Context, paymentID int64, reason string) (applied bool, err error)

	// Confirm atomically moves AWAITING_CALLBACK -> CONFIRMED, decrements
	// stock for the order's line items (clamped at zero) and confirms the
	// order. Shortfalls are reported, not treated as errors.
	Confirm(ctx context.Context, paymentID int64, receipt string) (applied bool, shortfalls []StockShortfall, err error)

	// FailWithOrder moves AWAITING_CALLBACK -> FAILED and fails the order
	// in the same transaction.
	FailWithOrder(ctx context.Context, paymentID int64, reason string) (applied bool, err error)

	// ListStuckAwaiting returns attempts stuck in AWAITING_CALLBACK for
	// longer than the cutoff, oldest first.
	ListStuckAwaiting(ctx context.Context, olderThan time.Duration, limit int) ([]model.Payment, error)
}
