package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	domainErrors "github.com/polkiloo/marketplace/internal/domain/errors"
	"github.com/polkiloo/marketplace/internal/domain/model"
	testhelpers "github.com/polkiloo/marketplace/internal/test"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestProductUseCaseListActive(t *testing.T) {
	repo := testhelpers.NewProductRepositoryStub(
		model.Product{Title: "Blender", OriginalPrice: 4500, Status: model.ProductStatusActive},
		model.Product{Title: "Retired", OriginalPrice: 900, Status: model.ProductStatusInactive},
	)
	uc := NewProductUseCase(repo, discardLogger())

	products, err := uc.ListActive(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(products) != 1 || products[0].Title != "Blender" {
		t.Fatalf("unexpected catalog %+v", products)
	}
}

func TestProductUseCaseListFallsBackOnStorageError(t *testing.T) {
	repo := &testhelpers.ProductRepositoryStub{
		ListActiveFn: func(context.Context) ([]model.Product, error) {
			return nil, errors.New("connection refused")
		},
	}
	uc := NewProductUseCase(repo, discardLogger())

	products, err := uc.ListActive(context.Background())
	if err != nil {
		t.Fatalf("fallback should not surface the error, got %v", err)
	}
	if len(products) == 0 {
		t.Fatal("expected fallback catalog entries")
	}
	for _, p := range products {
		if p.Status != model.ProductStatusActive {
			t.Fatalf("fallback catalog contains inactive product %+v", p)
		}
	}
}

func TestProductUseCaseCreateRequiresSeller(t *testing.T) {
	uc := NewProductUseCase(testhelpers.NewProductRepositoryStub(), discardLogger())

	_, err := uc.Create(context.Background(), model.RoleBuyer, &model.Product{Title: "X", OriginalPrice: 100})
	if !errors.Is(err, domainErrors.ErrForbidden) {
		t.Fatalf("expected forbidden for buyer, got %v", err)
	}
}

func TestProductUseCaseCreateValidates(t *testing.T) {
	uc := NewProductUseCase(testhelpers.NewProductRepositoryStub(), discardLogger())
	ctx := context.Background()

	cases := []struct {
		name    string
		product model.Product
	}{
		{"empty title", model.Product{OriginalPrice: 100}},
		{"zero price", model.Product{Title: "X"}},
		{"negative price", model.Product{Title: "X", OriginalPrice: -5}},
		{"discount above 100", model.Product{Title: "X", OriginalPrice: 100, DiscountPercent: 101}},
		{"negative stock", model.Product{Title: "X", OriginalPrice: 100, Stock: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			product := tc.product
			if _, err := uc.Create(ctx, model.RoleSeller, &product); !errors.Is(err, domainErrors.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestProductUseCaseCreateDefaultsStatus(t *testing.T) {
	repo := testhelpers.NewProductRepositoryStub()
	uc := NewProductUseCase(repo, discardLogger())

	created, err := uc.Create(context.Background(), model.RoleAdmin, &model.Product{
		Title: "Maasai Blanket", OriginalPrice: 2500, DiscountPercent: 10, Stock: 40,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.Status != model.ProductStatusActive {
		t.Fatalf("expected active status by default, got %s", created.Status)
	}
	if created.ID == 0 {
		t.Fatal("expected assigned id")
	}
}
