package dto

import "github.com/polkiloo/marketplace/internal/domain/model"

// ProductRequest describes a new catalog entry.
type ProductRequest struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	Category        string `json:"category"`
	Price           int64  `json:"price"`
	DiscountPercent int    `json:"discount_percent"`
	Stock           int    `json:"stock"`
}

// ProductResponse is the storefront view of a catalog entry.
type ProductResponse struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	Category        string `json:"category,omitempty"`
	OriginalPrice   int64  `json:"original_price"`
	DiscountPercent int    `json:"discount_percent"`
	Price           int64  `json:"price"`
	Stock           int    `json:"stock"`
	Status          string `json:"status"`
}

// ToProduct maps the request to a domain product.
func (r ProductRequest) ToProduct() *model.Product {
	return &model.Product{
		Title:           r.Title,
		Description:     r.Description,
		Category:        r.Category,
		OriginalPrice:   r.Price,
		DiscountPercent: r.DiscountPercent,
		Stock:           r.Stock,
	}
}

// ToProductResponse maps a domain product to its storefront view.
func ToProductResponse(p model.Product) ProductResponse {
	return ProductResponse{
		ID:              p.ID,
		Title:           p.Title,
		Description:     p.Description,
		Category:        p.Category,
		OriginalPrice:   p.OriginalPrice,
		DiscountPercent: p.DiscountPercent,
		Price:           p.DiscountedPrice(),
		Stock:           p.Stock,
		Status:          string(p.Status),
	}
}
