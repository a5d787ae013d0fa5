package dto

import "github.com/polkiloo/marketplace/internal/domain/model"

// PaymentRequest describes the STK push initiation payload.
type PaymentRequest struct {
	OrderID int64  `json:"order_id"`
	Phone   string `json:"phone"`
	Amount  int64  `json:"amount"`
}

// PaymentResponse is returned once the push is sent to the payer's handset.
type PaymentResponse struct {
	AttemptID         string `json:"attempt_id"`
	OrderID           int64  `json:"order_id"`
	Amount            int64  `json:"amount"`
	Phone             string `json:"phone"`
	Status            string `json:"status"`
	CheckoutRequestID string `json:"checkout_request_id,omitempty"`
}

// ToPaymentResponse maps a domain attempt to its API view.
func ToPaymentResponse(p *model.Payment) PaymentResponse {
	return PaymentResponse{
		AttemptID:         p.AttemptID,
		OrderID:           p.OrderID,
		Amount:            p.Amount,
		Phone:             p.Phone,
		Status:            string(p.Status),
		CheckoutRequestID: p.CheckoutRequestID,
	}
}
