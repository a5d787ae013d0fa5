package model

import "time"

// OrderStatus follows the payment lifecycle of the order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusFailed    OrderStatus = "FAILED"
)

// Terminal reports whether the order can no longer change state.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusConfirmed || s == OrderStatusFailed
}

// OrderItem is a single order line priced at order-creation time.
type OrderItem struct {
	ProductID int64
	Quantity  int
	UnitPrice int64
}

// Order describes a buyer's intended purchase.
type Order struct {
	ID        int64
	UserID    int64
	Items     []OrderItem
	Total     int64
	Currency  string
	Status    OrderStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}
