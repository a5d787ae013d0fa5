package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/polkiloo/marketplace/internal/adapter/daraja"
	"github.com/polkiloo/marketplace/internal/domain/model"
	testhelpers "github.com/polkiloo/marketplace/internal/test"
	"github.com/polkiloo/marketplace/internal/usecase"
)

func newTestFacade(t *testing.T) (*MarketplaceFacade, *testhelpers.PaymentRepositoryStub, *testhelpers.DarajaClientStub) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	users := testhelpers.NewUserRepositoryStub()
	products := testhelpers.NewProductRepositoryStub(
		model.Product{ID: 1, Title: "Phone", OriginalPrice: 1000, Stock: 10, Status: model.ProductStatusActive},
	)
	orders := testhelpers.NewOrderRepositoryStub()
	payments := testhelpers.NewPaymentRepositoryStub()
	client := &testhelpers.DarajaClientStub{}

	merchant := daraja.Config{
		BaseURL:        "https://sandbox.example",
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		Passkey:        "passkey",
		CallbackURL:    "https://merchant.example/api/payments/callback",
	}

	auth := usecase.NewAuthUseCase(users, testhelpers.HasherStub{}, testhelpers.StrategyStub{})
	catalog := usecase.NewProductUseCase(products, logger)
	orderUC := usecase.NewOrderUseCase(orders, products)
	paymentUC := usecase.NewPaymentUseCase(payments, orders, client, merchant,
		usecase.NewAuditUseCase(&testhelpers.AuditRepositoryStub{}, logger), logger)

	return NewMarketplaceFacade(auth, catalog, orderUC, paymentUC), payments, client
}

func TestFacadeEndToEndPaymentFlow(t *testing.T) {
	facade, payments, _ := newTestFacade(t)
	ctx := context.Background()

	user, token, err := facade.Register(ctx, "buyer@example.com", "secret", "Buyer", "")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected token")
	}

	catalog, err := facade.Products(ctx)
	if err != nil || len(catalog) != 1 {
		t.Fatalf("unexpected catalog %v %v", catalog, err)
	}

	order, err := facade.CreateOrder(ctx, user.ID, []model.OrderItem{{ProductID: 1, Quantity: 2}})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if order.Total != 2000 {
		t.Fatalf("unexpected total %d", order.Total)
	}

	payment, err := facade.InitiatePayment(ctx, user.ID, user.Role, order.ID, "254712345678", order.Total)
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}
	if payment.Status != model.PaymentStatusAwaitingCallback {
		t.Fatalf("unexpected status %s", payment.Status)
	}

	err = facade.HandleCallback(ctx, model.CallbackResult{
		MerchantRef: payment.AttemptID,
		ResultCode:  0,
		Receipt:     "QGR7TKIXV1",
	})
	if err != nil {
		t.Fatalf("callback failed: %v", err)
	}
	if len(payments.ConfirmedOrders) != 1 || payments.ConfirmedOrders[0] != order.ID {
		t.Fatalf("order not confirmed: %+v", payments.ConfirmedOrders)
	}
}

func TestFacadeSweeperSurface(t *testing.T) {
	facade, payments, client := newTestFacade(t)
	ctx := context.Background()

	user, _, err := facade.Register(ctx, "buyer@example.com", "secret", "", "")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	order, err := facade.CreateOrder(ctx, user.ID, []model.OrderItem{{ProductID: 1, Quantity: 1}})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	payment, err := facade.InitiatePayment(ctx, user.ID, user.Role, order.ID, "254712345678", order.Total)
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}

	payments.Attempts[payment.ID].UpdatedAt = time.Now().Add(-time.Hour)

	stuck, err := facade.StuckPayments(ctx, time.Minute, 10)
	if err != nil || len(stuck) != 1 {
		t.Fatalf("unexpected stuck set %v %v", stuck, err)
	}

	client.QueryFn = func(_ context.Context, id string) (*model.CallbackResult, error) {
		return &model.CallbackResult{CheckoutRequestID: id, ResultCode: 1032, ResultDesc: "cancelled"}, nil
	}
	if err := facade.ReconcilePayment(ctx, stuck[0]); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if len(payments.FailedOrders) != 1 {
		t.Fatalf("order not failed: %+v", payments.FailedOrders)
	}
}

func TestFacadeParseToken(t *testing.T) {
	facade, _, _ := newTestFacade(t)
	id, role, err := facade.ParseToken("anything")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if id != 1 || role != model.RoleBuyer {
		t.Fatalf("unexpected identity %d/%s", id, role)
	}
}
