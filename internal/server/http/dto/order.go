package dto

import (
	"time"

	"github.com/polkiloo/marketplace/internal/domain/model"
)

// OrderItemRequest is one requested order line.
type OrderItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// CreateOrderRequest describes the checkout payload.
type CreateOrderRequest struct {
	Items []OrderItemRequest `json:"items"`
}

// OrderItemResponse is one priced order line.
type OrderItemResponse struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
}

// OrderResponse is the buyer's view of an order.
type OrderResponse struct {
	ID        int64               `json:"id"`
	Status    string              `json:"status"`
	Total     int64               `json:"total"`
	Currency  string              `json:"currency"`
	Items     []OrderItemResponse `json:"items,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}

// ToOrderItems maps request lines to domain items.
func (r CreateOrderRequest) ToOrderItems() []model.OrderItem {
	items := make([]model.OrderItem, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, model.OrderItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return items
}

// ToOrderResponse maps a domain order to its API view.
func ToOrderResponse(order model.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemResponse{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return OrderResponse{
		ID:        order.ID,
		Status:    string(order.Status),
		Total:     order.Total,
		Currency:  order.Currency,
		Items:     items,
		CreatedAt: order.CreatedAt,
	}
}
