package model

import "time"

// ProductStatus describes catalog visibility.
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
)

// Product is a catalog entry. Prices are whole Kenyan shillings.
type Product struct {
	ID              int64
	Title           string
	Description     string
	Category        string
	OriginalPrice   int64
	DiscountPercent int
	Stock           int
	Status          ProductStatus
	CreatedAt       time.Time
}

// DiscountedPrice returns the effective price after discount, rounded down.
func (p Product) DiscountedPrice() int64 {
	if p.DiscountPercent <= 0 {
		return p.OriginalPrice
	}
	if p.DiscountPercent >= 100 {
		return 0
	}
	return p.OriginalPrice * int64(100-p.DiscountPercent) / 100
}
