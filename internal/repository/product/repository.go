package product

import (
	"context"
	"errors"

	"storefront/internal/domain"
)

// ErrInsufficientInventory is returned by DecrementInventory when the row
// holds less stock than requested.
var ErrInsufficientInventory = errors.New("insufficient inventory")

type Repository interface {
	List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	// GetForUpdate locks the row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id string) (*domain.Product, error)
	Create(ctx context.Context, p domain.Product) (*domain.Product, error)
	Update(ctx context.Context, p domain.Product) (*domain.Product, error)
	Delete(ctx context.Context, id string) error
	DecrementInventory(ctx context.Context, id string, quantity int) (int, error)
	UpsertByTitle(ctx context.Context, p domain.Product) (*domain.Product, error)
}
