package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/polkiloo/marketplace/internal/domain/errors"
	"github.com/polkiloo/marketplace/internal/server/http/dto"
)

// PaymentHandler exposes payment initiation and the provider callback.
type PaymentHandler struct {
	facade PaymentFacade
	logger *slog.Logger
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(facade PaymentFacade, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{facade: facade, logger: logger}
}

// Initiate handles POST /api/payments.
func (h *PaymentHandler) Initiate(c *gin.Context) {
	var req dto.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment request"})
		return
	}

	payment, err := h.facade.InitiatePayment(c.Request.Context(),
		CurrentUserID(c), CurrentUserRole(c), req.OrderID, req.Phone, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, domainErrors.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, domainErrors.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": "order belongs to another buyer"})
		case errors.Is(err, domainErrors.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		case errors.Is(err, domainErrors.ErrPaymentInFlight):
			c.JSON(http.StatusConflict, gin.H{"error": "payment already in progress for this order"})
		case errors.Is(err, domainErrors.ErrCredentialFetch), errors.Is(err, domainErrors.ErrPaymentInitiation):
			c.JSON(http.StatusBadGateway, gin.H{"error": "payment provider unavailable"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusAccepted, dto.ToPaymentResponse(payment))
}

// Callback handles POST /api/payments/callback. The provider retries
// non-200 responses, so the endpoint acknowledges every well-formed
// delivery, including ones that match no attempt.
func (h *PaymentHandler) Callback(c *gin.Context) {
	var envelope dto.STKCallbackEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		c.JSON(http.StatusOK, dto.CallbackAck{ResultCode: 0, ResultDesc: "Accepted"})
		return
	}

	result := envelope.ToCallbackResult()
	if err := h.facade.HandleCallback(c.Request.Context(), result); err != nil {
		if !errors.Is(err, domainErrors.ErrUnknownPayment) {
			h.logger.Error("callback processing failed",
				slog.String("checkout_request_id", result.CheckoutRequestID),
				slog.String("error", err.Error()))
		}
	}

	c.JSON(http.StatusOK, dto.CallbackAck{ResultCode: 0, ResultDesc: "Accepted"})
}
