package test

import (
	"context"
	"sync"
	"time"

	domainErrors "github.com/polkiloo/marketplace/internal/domain/errors"
	"github.com/polkiloo/marketplace/internal/domain/model"
	"github.com/polkiloo/marketplace/internal/domain/repository"
)

// UserRepositoryStub stores users in-memory for tests.
type UserRepositoryStub struct {
	Users map[string]*model.User
	ByID  map[int64]*model.User
	Next  int64
	Err   error
}

// NewUserRepositoryStub constructs stub repository with initialized maps.
func NewUserRepositoryStub() *UserRepositoryStub {
	return &UserRepositoryStub{
		Users: make(map[string]*model.User),
		ByID:  make(map[int64]*model.User),
		Next:  1,
	}
}

// Create registers user unless already exists or stub has explicit error.
func (s *UserRepositoryStub) Create(ctx context.Context, email, passwordHash string, role model.Role, fullName string) (*model.User, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if _, exists := s.Users[email]; exists {
		return nil, domainErrors.ErrAlreadyExists
	}
	if s.Next == 0 {
		s.Next = 1
	}
	user := &model.User{ID: s.Next, Email: email, PasswordHash: passwordHash, Role: role, FullName: fullName}
	s.Next++
	s.Users[email] = user
	s.ByID[user.ID] = user
	return user, nil
}

// GetByEmail fetches user by email or returns not found.
func (s *UserRepositoryStub) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if user, ok := s.Users[email]; ok {
		return user, nil
	}
	return nil, domainErrors.ErrNotFound
}

// GetByID fetches user by identifier or returns not found.
func (s *UserRepositoryStub) GetByID(ctx context.Context, id int64) (*model.User, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if user, ok := s.ByID[id]; ok {
		return user, nil
	}
	return nil, domainErrors.ErrNotFound
}

// ProductRepositoryStub serves a fixed catalog with optional overrides.
type ProductRepositoryStub struct {
	CreateFn     func(context.Context, *model.Product) (*model.Product, error)
	GetByIDFn    func(context.Context, int64) (*model.Product, error)
	ListActiveFn func(context.Context) ([]model.Product, error)

	Products map[int64]*model.Product
	Next     int64
}

// NewProductRepositoryStub constructs stub with initialized map.
func NewProductRepositoryStub(products ...model.Product) *ProductRepositoryStub {
	s := &ProductRepositoryStub{Products: make(map[int64]*model.Product), Next: 1}
	for i := range products {
		p := products[i]
		if p.ID == 0 {
			p.ID = s.Next
		}
		if p.ID >= s.Next {
			s.Next = p.ID + 1
		}
		s.Products[p.ID] = &p
	}
	return s
}

// Create stores product assigning the next identifier.
func (s *ProductRepositoryStub) Create(ctx context.Context, product *model.Product) (*model.Product, error) {
	if s.CreateFn != nil {
		return s.CreateFn(ctx, product)
	}
	created := *product
	created.ID = s.Next
	s.Next++
	s.Products[created.ID] = &created
	return &created, nil
}

// GetByID fetches product or returns not found.
func (s *ProductRepositoryStub) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	if s.GetByIDFn != nil {
		return s.GetByIDFn(ctx, id)
	}
	if p, ok := s.Products[id]; ok {
		return p, nil
	}
	return nil, domainErrors.ErrNotFound
}

// ListActive returns active products from the stored map.
func (s *ProductRepositoryStub) ListActive(ctx context.Context) ([]model.Product, error) {
	if s.ListActiveFn != nil {
		return s.ListActiveFn(ctx)
	}
	var result []model.Product
	for _, p := range s.Products {
		if p.Status == model.ProductStatusActive {
			result = append(result, *p)
		}
	}
	return result, nil
}

// OrderRepositoryStub allows tests to customize order behaviour.
type OrderRepositoryStub struct {
	CreateFn     func(context.Context, *model.Order) (*model.Order, error)
	GetByIDFn    func(context.Context, int64) (*model.Order, error)
	ListByUserFn func(context.Context, int64) ([]model.Order, error)

	Orders map[int64]*model.Order
	Next   int64
}

// NewOrderRepositoryStub constructs stub with initialized map.
func NewOrderRepositoryStub() *OrderRepositoryStub {
	return &OrderRepositoryStub{Orders: make(map[int64]*model.Order), Next: 1}
}

// Create stores the order assigning the next identifier.
func (s *OrderRepositoryStub) Create(ctx context.Context, order *model.Order) (*model.Order, error) {
	if s.CreateFn != nil {
		return s.CreateFn(ctx, order)
	}
	created := *order
	created.ID = s.Next
	s.Next++
	s.Orders[created.ID] = &created
	return &created, nil
}

// GetByID fetches order or returns not found.
func (s *OrderRepositoryStub) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	if s.GetByIDFn != nil {
		return s.GetByIDFn(ctx, id)
	}
	if o, ok := s.Orders[id]; ok {
		return o, nil
	}
	return nil, domainErrors.ErrNotFound
}

// ListByUser returns stored orders belonging to the user.
func (s *OrderRepositoryStub) ListByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	if s.ListByUserFn != nil {
		return s.ListByUserFn(ctx, userID)
	}
	var result []model.Order
	for _, o := range s.Orders {
		if o.UserID == userID {
			result = append(result, *o)
		}
	}
	return result, nil
}

// PaymentRepositoryStub keeps attempts in-memory with the same transition
// semantics the real store enforces: one non-terminal attempt per order and
// conditional updates that report whether they applied.
type PaymentRepositoryStub struct {
	mu       sync.Mutex
	Attempts map[int64]*model.Payment
	Next     int64

	Shortfalls []repository.StockShortfall
	CreateErr  error

	ConfirmedOrders []int64
	FailedOrders    []int64
}

// NewPaymentRepositoryStub constructs stub with initialized map.
func NewPaymentRepositoryStub() *PaymentRepositoryStub {
	return &PaymentRepositoryStub{Attempts: make(map[int64]*model.Payment), Next: 1}
}

// CreateAttempt inserts a new attempt, rejecting a second non-terminal one
// for the same order.
func (s *PaymentRepositoryStub) CreateAttempt(ctx context.Context, payment *model.Payment) (*model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		return nil, s.CreateErr
	}
	for _, p := range s.Attempts {
		if p.OrderID == payment.OrderID && !p.Status.Terminal() {
			return nil, domainErrors.ErrPaymentInFlight
		}
	}
	created := *payment
	created.ID = s.Next
	created.CreatedAt = time.Now()
	created.UpdatedAt = created.CreatedAt
	s.Next++
	s.Attempts[created.ID] = &created
	out := created
	return &out, nil
}

// GetByAttemptID fetches attempt by merchant reference.
func (s *PaymentRepositoryStub) GetByAttemptID(ctx context.Context, attemptID string) (*model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.Attempts {
		if p.AttemptID == attemptID {
			out := *p
			return &out, nil
		}
	}
	return nil, domainErrors.ErrNotFound
}

// GetByCheckoutRequestID fetches attempt by provider identifier.
func (s *PaymentRepositoryStub) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.Attempts {
		if p.CheckoutRequestID == checkoutRequestID {
			out := *p
			return &out, nil
		}
	}
	return nil, domainErrors.ErrNotFound
}

// MarkAwaiting applies CREATED -> AWAITING_CALLBACK.
func (s *PaymentRepositoryStub) MarkAwaiting(ctx context.Context, paymentID int64, checkoutRequestID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.Attempts[paymentID]
	if !ok || p.Status != model.PaymentStatusCreated {
		return false, nil
	}
	p.Status = model.PaymentStatusAwaitingCallback
	p.CheckoutRequestID = checkoutRequestID
	p.UpdatedAt = time.Now()
	return true, nil
}

// Fail applies a non-terminal -> FAILED transition.
func (s *PaymentRepositoryStub) Fail(ctx context.Context, paymentID int64, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.Attempts[paymentID]
	if !ok || p.Status.Terminal() {
		return false, nil
	}
	p.Status = model.PaymentStatusFailed
	p.FailReason = reason
	p.UpdatedAt = time.Now()
	return true, nil
}

// Confirm applies AWAITING_CALLBACK -> CONFIRMED and records the order.
func (s *PaymentRepositoryStub) Confirm(ctx context.Context, paymentID int64, receipt string) (bool, []repository.StockShortfall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.Attempts[paymentID]
	if !ok || p.Status != model.PaymentStatusAwaitingCallback {
		return false, nil, nil
	}
	p.Status = model.PaymentStatusConfirmed
	p.Receipt = receipt
	p.UpdatedAt = time.Now()
	s.ConfirmedOrders = append(s.ConfirmedOrders, p.OrderID)
	return true, s.Shortfalls, nil
}

// FailWithOrder applies AWAITING_CALLBACK -> FAILED and records the order.
func (s *PaymentRepositoryStub) FailWithOrder(ctx context.Context, paymentID int64, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.Attempts[paymentID]
	if !ok || p.Status != model.PaymentStatusAwaitingCallback {
		return false, nil
	}
	p.Status = model.PaymentStatusFailed
	p.FailReason = reason
	p.UpdatedAt = time.Now()
	s.FailedOrders = append(s.FailedOrders, p.OrderID)
	return true, nil
}

// ListStuckAwaiting returns attempts awaiting a callback longer than the
// cutoff.
func (s *PaymentRepositoryStub) ListStuckAwaiting(ctx context.Context, olderThan time.Duration, limit int) ([]model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	var result []model.Payment
	for _, p := range s.Attempts {
		if p.Status == model.PaymentStatusAwaitingCallback && p.UpdatedAt.Before(cutoff) {
			result = append(result, *p)
			if len(result) == limit {
				break
			}
		}
	}
	return result, nil
}

// AuditRepositoryStub records audit entries for inspection.
type AuditRepositoryStub struct {
	mu      sync.Mutex
	Entries []model.AuditEntry
	Err     error
}

// Record appends the entry unless an error is configured.
func (s *AuditRepositoryStub) Record(ctx context.Context, entry model.AuditEntry) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Entries = append(s.Entries, entry)
	return nil
}
