package test

import (
	"context"
	"sync"
	"time"

	"github.com/polkiloo/marketplace/internal/adapter/daraja"
	"github.com/polkiloo/marketplace/internal/domain/model"
)

// CatalogFacadeStub provides controllable behaviour for catalog endpoints.
type CatalogFacadeStub struct {
	ProductsFn   func(context.Context) ([]model.Product, error)
	AddProductFn func(context.Context, model.Role, *model.Product) (*model.Product, error)
}

// Products returns predefined catalog entries.
func (s CatalogFacadeStub) Products(ctx context.Context) ([]model.Product, error) {
	if s.ProductsFn != nil {
		return s.ProductsFn(ctx)
	}
	return []model.Product{{ID: 1, Title: "Test Product", OriginalPrice: 1000, Status: model.ProductStatusActive}}, nil
}

// AddProduct delegates to the override or echoes the product back.
func (s CatalogFacadeStub) AddProduct(ctx context.Context, role model.Role, product *model.Product) (*model.Product, error) {
	if s.AddProductFn != nil {
		return s.AddProductFn(ctx, role, product)
	}
	created := *product
	created.ID = 1
	return &created, nil
}

// OrderFacadeStub provides controllable behaviour for order endpoints.
type OrderFacadeStub struct {
	CreateOrderFn func(context.Context, int64, []model.OrderItem) (*model.Order, error)
	OrdersFn      func(context.Context, int64) ([]model.Order, error)
	OrderFn       func(context.Context, int64, model.Role, int64) (*model.Order, error)
}

// CreateOrder delegates to provided function or returns a pending order.
func (s OrderFacadeStub) CreateOrder(ctx context.Context, userID int64, items []model.OrderItem) (*model.Order, error) {
	if s.CreateOrderFn != nil {
		return s.CreateOrderFn(ctx, userID, items)
	}
	return &model.Order{ID: 1, UserID: userID, Items: items, Currency: "KES", Status: model.OrderStatusPending}, nil
}

// Orders returns predefined orders for given user.
func (s OrderFacadeStub) Orders(ctx context.Context, userID int64) ([]model.Order, error) {
	if s.OrdersFn != nil {
		return s.OrdersFn(ctx, userID)
	}
	return []model.Order{{ID: 1, UserID: userID, Status: model.OrderStatusPending}}, nil
}

// Order returns predefined order by identifier.
func (s OrderFacadeStub) Order(ctx context.Context, userID int64, role model.Role, orderID int64) (*model.Order, error) {
	if s.OrderFn != nil {
		return s.OrderFn(ctx, userID, role, orderID)
	}
	return &model.Order{ID: orderID, UserID: userID, Status: model.OrderStatusPending}, nil
}

// PaymentFacadeStub simulates payment operations.
type PaymentFacadeStub struct {
	InitiateFn func(context.Context, int64, model.Role, int64, string, int64) (*model.Payment, error)
	CallbackFn func(context.Context, model.CallbackResult) error

	mu        sync.Mutex
	Callbacks []model.CallbackResult
}

// InitiatePayment delegates to the override or returns an awaiting attempt.
func (s *PaymentFacadeStub) InitiatePayment(ctx context.Context, userID int64, role model.Role, orderID int64, phone string, amount int64) (*model.Payment, error) {
	if s.InitiateFn != nil {
		return s.InitiateFn(ctx, userID, role, orderID, phone, amount)
	}
	return &model.Payment{
		ID:                1,
		AttemptID:         "pay_test",
		OrderID:           orderID,
		Phone:             phone,
		Amount:            amount,
		CheckoutRequestID: "ws_CO_1",
		Status:            model.PaymentStatusAwaitingCallback,
	}, nil
}

// HandleCallback records results for inspection.
func (s *PaymentFacadeStub) HandleCallback(ctx context.Context, result model.CallbackResult) error {
	if s.CallbackFn != nil {
		return s.CallbackFn(ctx, result)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Callbacks = append(s.Callbacks, result)
	return nil
}

// MarketplaceFacadeStub aggregates facade dependencies for HTTP layer tests.
type MarketplaceFacadeStub struct {
	AuthFacadeStub
	CatalogFacadeStub
	OrderFacadeStub
	*PaymentFacadeStub
}

// NewMarketplaceFacadeStub constructs the aggregate with a usable payment
// stub.
func NewMarketplaceFacadeStub() *MarketplaceFacadeStub {
	return &MarketplaceFacadeStub{PaymentFacadeStub: &PaymentFacadeStub{}}
}

// DarajaClientStub mimics the provider client for payment flow tests.
type DarajaClientStub struct {
	PushFn  func(context.Context, daraja.PushRequest) (*daraja.PushResponse, error)
	QueryFn func(context.Context, string) (*model.CallbackResult, error)

	mu      sync.Mutex
	Pushes  []daraja.PushRequest
	Queries []string
}

// Push records the request and returns configured or default response.
func (s *DarajaClientStub) Push(ctx context.Context, req daraja.PushRequest) (*daraja.PushResponse, error) {
	s.mu.Lock()
	s.Pushes = append(s.Pushes, req)
	s.mu.Unlock()
	if s.PushFn != nil {
		return s.PushFn(ctx, req)
	}
	return &daraja.PushResponse{
		MerchantRequestID: "merchant-1",
		CheckoutRequestID: "ws_CO_1",
		ResponseCode:      "0",
	}, nil
}

// QueryStatus records the query and returns configured or successful result.
func (s *DarajaClientStub) QueryStatus(ctx context.Context, checkoutRequestID string) (*model.CallbackResult, error) {
	s.mu.Lock()
	s.Queries = append(s.Queries, checkoutRequestID)
	s.mu.Unlock()
	if s.QueryFn != nil {
		return s.QueryFn(ctx, checkoutRequestID)
	}
	return &model.CallbackResult{CheckoutRequestID: checkoutRequestID, ResultCode: 0, ResultDesc: "Success"}, nil
}

// PushCount returns how many pushes were issued.
func (s *DarajaClientStub) PushCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Pushes)
}

// SweeperFacadeStub mimics worker interactions with the payment flow.
type SweeperFacadeStub struct {
	Batches     [][]model.Payment
	StuckFn     func(context.Context, time.Duration, int) ([]model.Payment, error)
	ReconcileFn func(context.Context, model.Payment) error

	mu         sync.Mutex
	batchCalls int
	Reconciled []model.Payment
}

// StuckPayments returns batches from the configured queue.
func (s *SweeperFacadeStub) StuckPayments(ctx context.Context, olderThan time.Duration, limit int) ([]model.Payment, error) {
	if s.StuckFn != nil {
		return s.StuckFn(ctx, olderThan, limit)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batchCalls < len(s.Batches) {
		batch := s.Batches[s.batchCalls]
		s.batchCalls++
		return batch, nil
	}
	return nil, nil
}

// ReconcilePayment records reconciliation requests.
func (s *SweeperFacadeStub) ReconcilePayment(ctx context.Context, payment model.Payment) error {
	if s.ReconcileFn != nil {
		return s.ReconcileFn(ctx, payment)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Reconciled = append(s.Reconciled, payment)
	return nil
}

// ReconciledCount returns how many payments were reconciled.
func (s *SweeperFacadeStub) ReconciledCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Reconciled)
}
