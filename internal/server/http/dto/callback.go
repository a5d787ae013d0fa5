package dto

import (
	"strconv"

	"github.com/polkiloo/marketplace/internal/domain/model"
)

// STKCallbackEnvelope is the payload Daraja posts to the callback URL.
// Field names follow the wire format.
type STKCallbackEnvelope struct {
	Body struct {
		StkCallback STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

// STKCallback carries the push outcome. CallbackMetadata is present only on
// success.
type STKCallback struct {
	MerchantRequestID string `json:"MerchantRequestID"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResultCode        int    `json:"ResultCode"`
	ResultDesc        string `json:"ResultDesc"`
	CallbackMetadata  struct {
		Item []CallbackItem `json:"Item"`
	} `json:"CallbackMetadata"`
}

// CallbackItem is a loosely typed name/value pair from the metadata block.
type CallbackItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}

// CallbackAck is the acknowledgment Daraja expects regardless of how the
// callback was handled.
type CallbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// ToCallbackResult normalizes the envelope. Amounts arrive as JSON numbers
// and phone numbers as either numbers or strings, so both are coerced.
func (e STKCallbackEnvelope) ToCallbackResult() model.CallbackResult {
	cb := e.Body.StkCallback
	result := model.CallbackResult{
		CheckoutRequestID: cb.CheckoutRequestID,
		ResultCode:        cb.ResultCode,
		ResultDesc:        cb.ResultDesc,
	}

	for _, item := range cb.CallbackMetadata.Item {
		switch item.Name {
		case "MpesaReceiptNumber":
			if s, ok := item.Value.(string); ok {
				result.Receipt = s
			}
		case "Amount":
			if n, ok := item.Value.(float64); ok {
				amount := int64(n)
				result.Amount = &amount
			}
		case "PhoneNumber":
			switch v := item.Value.(type) {
			case float64:
				result.Phone = formatPhone(v)
			case string:
				result.Phone = v
			}
		case "AccountReference":
			if s, ok := item.Value.(string); ok {
				result.MerchantRef = s
			}
		}
	}
	return result
}

func formatPhone(v float64) string {
	digits := int64(v)
	if digits <= 0 {
		return ""
	}
	return strconv.FormatInt(digits, 10)
}
