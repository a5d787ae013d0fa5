package usecase

import (
	"fmt"
	"net/mail"

	domainErrors "github.com/polkiloo/marketplace/internal/domain/errors"
	"github.com/polkiloo/marketplace/internal/domain/model"
)

// ValidateEmail reports whether the address parses as a bare RFC 5322
// address.
func ValidateEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Address == email
}

// ValidateOrderItems rejects empty orders, non-positive quantities and
// duplicate product lines.
func ValidateOrderItems(items []model.OrderItem) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: order must contain at least one item", domainErrors.ErrValidation)
	}
	seen := make(map[int64]struct{}, len(items))
	for _, item := range items {
		if item.ProductID <= 0 {
			return fmt.Errorf("%w: invalid product id %d", domainErrors.ErrValidation, item.ProductID)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: quantity must be positive for product %d", domainErrors.ErrValidation, item.ProductID)
		}
		if _, dup := seen[item.ProductID]; dup {
			return fmt.Errorf("%w: duplicate product %d", domainErrors.ErrValidation, item.ProductID)
		}
		seen[item.ProductID] = struct{}{}
	}
	return nil
}
