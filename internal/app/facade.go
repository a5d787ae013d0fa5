package app

import (
	"context"
	"time"

	"github.com/polkiloo/marketplace/internal/domain/model"
	"github.com/polkiloo/marketplace/internal/usecase"
)

// MarketplaceFacade aggregates the use cases behind a single application
// surface shared by the HTTP layer and the background sweeper.
type MarketplaceFacade struct {
	auth     *usecase.AuthUseCase
	catalog  *usecase.ProductUseCase
	orders   *usecase.OrderUseCase
	payments *usecase.PaymentUseCase
}

// NewMarketplaceFacade constructs the facade.
func NewMarketplaceFacade(auth *usecase.AuthUseCase, catalog *usecase.ProductUseCase, orders *usecase.OrderUseCase, payments *usecase.PaymentUseCase) *MarketplaceFacade {
	return &MarketplaceFacade{auth: auth, catalog: catalog, orders: orders, payments: payments}
}

func (f *MarketplaceFacade) Register(ctx context.Context, email, password, fullName string, role model.Role) (*model.User, string, error) {
	return f.auth.Register(ctx, email, password, fullName, role)
}

func (f *MarketplaceFacade) Authenticate(ctx context.Context, email, password string) (*model.User, string, error) {
	return f.auth.Authenticate(ctx, email, password)
}

func (f *MarketplaceFacade) ParseToken(token string) (int64, model.Role, error) {
	return f.auth.ParseToken(token)
}

func (f *MarketplaceFacade) CurrentUser(ctx context.Context, id int64) (*model.User, error) {
	return f.auth.GetByID(ctx, id)
}

func (f *MarketplaceFacade) Products(ctx context.Context) ([]model.Product, error) {
	return f.catalog.ListActive(ctx)
}

func (f *MarketplaceFacade) AddProduct(ctx context.Context, role model.Role, product *model.Product) (*model.Product, error) {
	return f.catalog.Create(ctx, role, product)
}

func (f *MarketplaceFacade) CreateOrder(ctx context.Context, userID int64, items []model.OrderItem) (*model.Order, error) {
	return f.orders.Create(ctx, userID, items)
}

func (f *MarketplaceFacade) Orders(ctx context.Context, userID int64) ([]model.Order, error) {
	return f.orders.ListByUser(ctx, userID)
}

func (f *MarketplaceFacade) Order(ctx context.Context, userID int64, role model.Role, orderID int64) (*model.Order, error) {
	return f.orders.GetByID(ctx, userID, role, orderID)
}

func (f *MarketplaceFacade) InitiatePayment(ctx context.Context, userID int64, role model.Role, orderID int64, phone string, amount int64) (*model.Payment, error) {
	return f.payments.Initiate(ctx, userID, role, orderID, phone, amount)
}

func (f *MarketplaceFacade) HandleCallback(ctx context.Context, result model.CallbackResult) error {
	return f.payments.HandleCallback(ctx, result)
}

func (f *MarketplaceFacade) StuckPayments(ctx context.Context, olderThan time.Duration, limit int) ([]model.Payment, error) {
	return f.payments.ListStuck(ctx, olderThan, limit)
}

func (f *MarketplaceFacade) ReconcilePayment(ctx context.Context, payment model.Payment) error {
	return f.payments.Reconcile(ctx, payment)
}
