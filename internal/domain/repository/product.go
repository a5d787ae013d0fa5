package repository

import (
	"context"

	"github.com/polkiloo/marketplace/internal/domain/model"
)

// ProductRepository describes catalog persistence operations.
type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) (*model.Product, error)
	GetByID(ctx context.Context, id int64) (*model.Product, error)
	ListActive(ctx context.Context) ([]model.Product, error)
}
