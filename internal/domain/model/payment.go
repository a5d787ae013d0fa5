package model

import "time"

// PaymentStatus describes the lifecycle of a single STK push attempt.
type PaymentStatus string

const (
	PaymentStatusCreated          PaymentStatus = "CREATED"
	PaymentStatusAwaitingCallback PaymentStatus = "AWAITING_CALLBACK"
	PaymentStatusConfirmed        PaymentStatus = "CONFIRMED"
	PaymentStatusFailed           PaymentStatus = "FAILED"
)

// Terminal reports whether the payment reached a final state.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusConfirmed || s == PaymentStatusFailed
}

// CanTransitionTo reports whether moving to next is a legal lifecycle step.
// CREATED may fail directly when the request never reaches the provider.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case PaymentStatusCreated:
		return next == PaymentStatusAwaitingCallback || next == PaymentStatusFailed
	case PaymentStatusAwaitingCallback:
		return next == PaymentStatusConfirmed || next == PaymentStatusFailed
	}
	return false
}

// Payment is one STK push attempt for an order. AttemptID is generated
// locally and doubles as the merchant reference sent to the provider, so
// reconciliation never depends solely on provider identifiers. An order may
// accumulate attempts over retries, but at most one may be non-terminal.
type Payment struct {
	ID                int64
	AttemptID         string
	OrderID           int64
	Phone             string
	Amount            int64
	CheckoutRequestID string
	Receipt           string
	Status            PaymentStatus
	FailReason        string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CallbackResult is the normalized outcome of a provider callback or a
// status query. ResultCode zero means the payer completed the payment.
type CallbackResult struct {
	MerchantRef       string
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string
	Receipt           string
	Amount            *int64
	Phone             string
}

// Success reports whether the provider confirmed the payment.
func (r CallbackResult) Success() bool {
	return r.ResultCode == 0
}
