package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	domainErrors "github.com/polkiloo/marketplace/internal/domain/errors"
	"github.com/polkiloo/marketplace/internal/domain/model"
	"github.com/polkiloo/marketplace/internal/domain/repository"
)

// defaultCatalog is served when the catalog store is unreachable so the
// storefront keeps rendering during database outages.
var defaultCatalog = []model.Product{
	{ID: 1, Title: "iPhone 13 Pro", Description: "256GB, Sierra Blue", Category: "Electronics", OriginalPrice: 120000, DiscountPercent: 20, Stock: 5, Status: model.ProductStatusActive},
	{ID: 2, Title: "Nike Air Max", Description: "Size 38-45 available", Category: "Fashion", OriginalPrice: 15000, DiscountPercent: 30, Stock: 12, Status: model.ProductStatusActive},
	{ID: 3, Title: "Samsung 55\" TV", Description: "4K Smart TV", Category: "Electronics", OriginalPrice: 80000, DiscountPercent: 25, Stock: 3, Status: model.ProductStatusActive},
}

// ProductUseCase serves the catalog.
type ProductUseCase struct {
	products repository.ProductRepository
	logger   *slog.Logger
}

// NewProductUseCase constructs ProductUseCase.
func NewProductUseCase(products repository.ProductRepository, logger *slog.Logger) *ProductUseCase {
	return &ProductUseCase{products: products, logger: logger}
}

// ListActive returns active catalog entries, falling back to the built-in
// catalog when the store errors.
func (u *ProductUseCase) ListActive(ctx context.Context) ([]model.Product, error) {
	products, err := u.products.ListActive(ctx)
	if err != nil {
		u.logger.Error("catalog unavailable, serving fallback", "error", err)
		fallback := make([]model.Product, len(defaultCatalog))
		copy(fallback, defaultCatalog)
		return fallback, nil
	}
	return products, nil
}

// GetByID fetches a single catalog entry.
func (u *ProductUseCase) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	return u.products.GetByID(ctx, id)
}

// Create adds a catalog entry. Only sellers and admins may list products.
func (u *ProductUseCase) Create(ctx context.Context, actorRole model.Role, product *model.Product) (*model.Product, error) {
	if actorRole != model.RoleSeller && actorRole != model.RoleAdmin {
		return nil, domainErrors.ErrForbidden
	}
	if strings.TrimSpace(product.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", domainErrors.ErrValidation)
	}
	if product.OriginalPrice <= 0 {
		return nil, fmt.Errorf("%w: price must be positive", domainErrors.ErrValidation)
	}
	if product.DiscountPercent < 0 || product.DiscountPercent > 100 {
		return nil, fmt.Errorf("%w: discount must be between 0 and 100", domainErrors.ErrValidation)
	}
	if product.Stock < 0 {
		return nil, fmt.Errorf("%w: stock cannot be negative", domainErrors.ErrValidation)
	}
	if product.Status == "" {
		product.Status = model.ProductStatusActive
	}
	return u.products.Create(ctx, product)
}
