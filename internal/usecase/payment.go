package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/polkiloo/marketplace/internal/adapter/daraja"
	domainErrors "github.com/polkiloo/marketplace/internal/domain/errors"
	"github.com/polkiloo/marketplace/internal/domain/model"
	"github.com/polkiloo/marketplace/internal/domain/repository"
)

// PaymentUseCase drives the STK push flow: initiation, callback
// reconciliation and recovery of attempts whose callback never arrived.
type PaymentUseCase struct {
	payments repository.PaymentRepository
	orders   repository.OrderRepository
	client   daraja.Client
	merchant daraja.Config
	audit    *AuditUseCase
	logger   *slog.Logger
	now      func() time.Time
}

// NewPaymentUseCase constructs PaymentUseCase.
func NewPaymentUseCase(
	payments repository.PaymentRepository,
	orders repository.OrderRepository,
	client daraja.Client,
	merchant daraja.Config,
	audit *AuditUseCase,
	logger *slog.Logger,
) *PaymentUseCase {
	return &PaymentUseCase{
		payments: payments,
		orders:   orders,
		client:   client,
		merchant: merchant,
		audit:    audit,
		logger:   logger,
		now:      time.Now,
	}
}

// Initiate starts an STK push for the order. The attempt row is created
// first so a crash between push and acknowledgment leaves a record; the
// partial unique index on payments guarantees at most one non-terminal
// attempt per order even under concurrent requests.
func (u *PaymentUseCase) Initiate(ctx context.Context, userID int64, role model.Role, orderID int64, phone string, amount int64) (*model.Payment, error) {
	if !daraja.ValidPhone(phone) {
		return nil, fmt.Errorf("%w: phone must match 254XXXXXXXXX", domainErrors.ErrValidation)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", domainErrors.ErrValidation)
	}

	order, err := u.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID && role != model.RoleAdmin {
		return nil, domainErrors.ErrForbidden
	}
	if order.Status != model.OrderStatusPending {
		return nil, fmt.Errorf("%w: order %d is %s", domainErrors.ErrValidation, orderID, order.Status)
	}
	if amount != order.Total {
		return nil, fmt.Errorf("%w: amount %d does not match order total %d", domainErrors.ErrValidation, amount, order.Total)
	}

	payment, err := u.payments.CreateAttempt(ctx, &model.Payment{
		AttemptID: "pay_" + uuid.NewString(),
		OrderID:   order.ID,
		Phone:     phone,
		Amount:    order.Total,
		Status:    model.PaymentStatusCreated,
	})
	if err != nil {
		return nil, err
	}

	pushReq, err := daraja.NewPushRequest(u.merchant, phone, payment.Amount,
		payment.AttemptID, fmt.Sprintf("Order #%d", order.ID), u.now())
	if err != nil {
		u.fail(ctx, payment, err.Error())
		return nil, err
	}

	resp, err := u.client.Push(ctx, pushReq)
	if err != nil {
		u.fail(ctx, payment, err.Error())
		return nil, err
	}

	applied, err := u.payments.MarkAwaiting(ctx, payment.ID, resp.CheckoutRequestID)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Something else already moved the attempt; report current state.
		return u.payments.GetByAttemptID(ctx, payment.AttemptID)
	}

	payment.Status = model.PaymentStatusAwaitingCallback
	payment.CheckoutRequestID = resp.CheckoutRequestID

	u.audit.Record(ctx, model.AuditEntry{
		ActorID:  userID,
		Action:   "payment.initiated",
		Entity:   "payment",
		EntityID: payment.AttemptID,
		Meta: map[string]any{
			"order_id":            order.ID,
			"amount":              payment.Amount,
			"checkout_request_id": resp.CheckoutRequestID,
		},
	})

	return payment, nil
}

// HandleCallback reconciles a provider result against the recorded attempt.
// Duplicate deliveries are absorbed: once an attempt is terminal, later
// results for it change nothing. Returns ErrUnknownPayment when the result
// matches no attempt; callers still acknowledge the provider.
func (u *PaymentUseCase) HandleCallback(ctx context.Context, result model.CallbackResult) error {
	payment, err := u.resolve(ctx, result)
	if err != nil {
		return err
	}

	if payment.Status.Terminal() {
		u.logger.Info("duplicate callback absorbed",
			"attempt_id", payment.AttemptID, "status", payment.Status)
		return nil
	}

	if result.Success() {
		return u.confirm(ctx, payment, result)
	}
	return u.failWithOrder(ctx, payment, result.ResultDesc)
}

// ListStuck returns attempts whose callback never arrived within olderThan.
func (u *PaymentUseCase) ListStuck(ctx context.Context, olderThan time.Duration, limit int) ([]model.Payment, error) {
	return u.payments.ListStuckAwaiting(ctx, olderThan, limit)
}

// Reconcile queries the provider for one stuck attempt and applies the
// final result when there is one. A still-processing attempt is left alone.
func (u *PaymentUseCase) Reconcile(ctx context.Context, payment model.Payment) error {
	result, err := u.client.QueryStatus(ctx, payment.CheckoutRequestID)
	if err != nil {
		if errors.Is(err, daraja.ErrStatusPending) {
			return nil
		}
		return err
	}

	result.MerchantRef = payment.AttemptID
	return u.HandleCallback(ctx, *result)
}

// resolve finds the attempt a result refers to, preferring the merchant
// reference we generated over the provider's checkout request id.
func (u *PaymentUseCase) resolve(ctx context.Context, result model.CallbackResult) (*model.Payment, error) {
	if result.MerchantRef != "" {
		payment, err := u.payments.GetByAttemptID(ctx, result.MerchantRef)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, domainErrors.ErrNotFound) {
			return nil, err
		}
	}
	if result.CheckoutRequestID != "" {
		payment, err := u.payments.GetByCheckoutRequestID(ctx, result.CheckoutRequestID)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, domainErrors.ErrNotFound) {
			return nil, err
		}
	}
	u.logger.Warn("callback matches no attempt",
		"merchant_ref", result.MerchantRef,
		"checkout_request_id", result.CheckoutRequestID)
	return nil, domainErrors.ErrUnknownPayment
}

func (u *PaymentUseCase) confirm(ctx context.Context, payment *model.Payment, result model.CallbackResult) error {
	if result.Amount != nil && *result.Amount != payment.Amount {
		u.logger.Warn("callback amount differs from attempt",
			"attempt_id", payment.AttemptID,
			"expected", payment.Amount, "reported", *result.Amount)
	}

	applied, shortfalls, err := u.payments.Confirm(ctx, payment.ID, result.Receipt)
	if err != nil {
		return err
	}
	if !applied {
		u.logger.Info("duplicate confirmation absorbed", "attempt_id", payment.AttemptID)
		return nil
	}
	for _, s := range shortfalls {
		u.logger.Warn("oversold product on confirmation",
			"attempt_id", payment.AttemptID,
			"product_id", s.ProductID, "requested", s.Requested, "available", s.Available)
	}

	u.audit.Record(ctx, model.AuditEntry{
		Action:   "payment.confirmed",
		Entity:   "payment",
		EntityID: payment.AttemptID,
		Meta: map[string]any{
			"order_id": payment.OrderID,
			"receipt":  result.Receipt,
		},
	})
	return nil
}

func (u *PaymentUseCase) failWithOrder(ctx context.Context, payment *model.Payment, reason string) error {
	applied, err := u.payments.FailWithOrder(ctx, payment.ID, reason)
	if err != nil {
		return err
	}
	if !applied {
		u.logger.Info("duplicate failure absorbed", "attempt_id", payment.AttemptID)
		return nil
	}

	u.audit.Record(ctx, model.AuditEntry{
		Action:   "payment.failed",
		Entity:   "payment",
		EntityID: payment.AttemptID,
		Meta: map[string]any{
			"order_id": payment.OrderID,
			"reason":   reason,
		},
	})
	return nil
}

// fail marks a CREATED attempt failed after an unsuccessful push. The order
// stays PENDING so the buyer can retry.
func (u *PaymentUseCase) fail(ctx context.Context, payment *model.Payment, reason string) {
	if _, err := u.payments.Fail(ctx, payment.ID, reason); err != nil {
		u.logger.Error("failed to mark attempt failed",
			"attempt_id", payment.AttemptID, "error", err)
	}
}
