package errors

import "errors"

var (
	ErrAlreadyExists      = errors.New("already exists")
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("forbidden")

	// ErrValidation covers malformed phone numbers, non-positive amounts,
	// bad order items and incomplete merchant configuration.
	ErrValidation = errors.New("validation failed")

	// ErrPaymentInFlight signals another non-terminal attempt already
	// exists for the order.
	ErrPaymentInFlight = errors.New("payment attempt already in flight")

	// ErrCredentialFetch signals the provider OAuth call failed.
	ErrCredentialFetch = errors.New("provider credential fetch failed")

	// ErrPaymentInitiation signals the STK push failed after a token was
	// obtained; the attempt is recorded as failed.
	ErrPaymentInitiation = errors.New("payment initiation failed")

	// ErrUnknownPayment signals a callback that matches no recorded attempt.
	ErrUnknownPayment = errors.New("unknown payment reference")

	// ErrInvalidTransition signals an out-of-order payment state change.
	ErrInvalidTransition = errors.New("invalid payment state transition")

	ErrOutOfStock = errors.New("insufficient stock")
)
