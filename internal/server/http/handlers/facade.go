package handlers

import (
	"context"

	"github.com/polkiloo/marketplace/internal/domain/model"
)

// AuthFacade describes authentication capabilities required by handlers.
type AuthFacade interface {
	Register(ctx context.Context, email, password, fullName string, role model.Role) (*model.User, string, error)
	Authenticate(ctx context.Context, email, password string) (*model.User, string, error)
	ParseToken(token string) (int64, model.Role, error)
	CurrentUser(ctx context.Context, id int64) (*model.User, error)
}

// CatalogFacade encapsulates catalog operations exposed via HTTP.
type CatalogFacade interface {
	Products(ctx context.Context) ([]model.Product, error)
	AddProduct(ctx context.Context, role model.Role, product *model.Product) (*model.Product, error)
}

// OrderFacade encapsulates order operations exposed via HTTP.
type OrderFacade interface {
	CreateOrder(ctx context.Context, userID int64, items []model.OrderItem) (*model.Order, error)
	Orders(ctx context.Context, userID int64) ([]model.Order, error)
	Order(ctx context.Context, userID int64, role model.Role, orderID int64) (*model.Order, error)
}

// PaymentFacade provides the payment flow operations.
type PaymentFacade interface {
	InitiatePayment(ctx context.Context, userID int64, role model.Role, orderID int64, phone string, amount int64) (*model.Payment, error)
	HandleCallback(ctx context.Context, result model.CallbackResult) error
}

// MarketplaceFacade aggregates the full set of operations used across handlers.
type MarketplaceFacade interface {
	AuthFacade
	CatalogFacade
	OrderFacade
	PaymentFacade
}

// HealthChecker reports backing store availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
