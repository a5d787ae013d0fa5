package usecase

import (
	"context"
	"fmt"

	domainErrors "github.com/polkiloo/marketplace/internal/domain/errors"
	"github.com/polkiloo/marketplace/internal/domain/model"
	"github.com/polkiloo/marketplace/internal/domain/repository"
)

// OrderUseCase encapsulates order lifecycle logic. Prices are captured at
// creation time so later catalog edits never change what a buyer owes.
type OrderUseCase struct {
	orders   repository.OrderRepository
	products repository.ProductRepository
}

// NewOrderUseCase constructs OrderUseCase.
func NewOrderUseCase(orders repository.OrderRepository, products repository.ProductRepository) *OrderUseCase {
	return &OrderUseCase{orders: orders, products: products}
}

// Create prices the requested items at their current discounted price and
// persists the order in PENDING state.
func (u *OrderUseCase) Create(ctx context.Context, userID int64, items []model.OrderItem) (*model.Order, error) {
	if err := ValidateOrderItems(items); err != nil {
		return nil, err
	}

	priced := make([]model.OrderItem, 0, len(items))
	var total int64
	for _, item := range items {
		product, err := u.products.GetByID(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		if product.Status != model.ProductStatusActive {
			return nil, fmt.Errorf("%w: product %d is not available", domainErrors.ErrValidation, item.ProductID)
		}
		if product.Stock < item.Quantity {
			return nil, fmt.Errorf("%w: product %d has %d in stock", domainErrors.ErrOutOfStock, item.ProductID, product.Stock)
		}
		unitPrice := product.DiscountedPrice()
		priced = append(priced, model.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: unitPrice,
		})
		total += unitPrice * int64(item.Quantity)
	}

	return u.orders.Create(ctx, &model.Order{
		UserID:   userID,
		Items:    priced,
		Total:    total,
		Currency: "KES",
		Status:   model.OrderStatusPending,
	})
}

// GetByID fetches an order visible to the requesting user. Admins see all
// orders.
func (u *OrderUseCase) GetByID(ctx context.Context, userID int64, role model.Role, orderID int64) (*model.Order, error) {
	order, err := u.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID && role != model.RoleAdmin {
		return nil, domainErrors.ErrForbidden
	}
	return order, nil
}

// ListByUser returns the user's orders, newest first.
func (u *OrderUseCase) ListByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return u.orders.ListByUser(ctx, userID)
}
