package cart

import (
	"context"

	"storefront/internal/domain"
)

type Repository interface {
	// GetByUser returns the user's cart with its lines.
	GetByUser(ctx context.Context, userID string) (*domain.Cart, error)
	// GetOrCreateForUpdate creates the cart on first use and locks it for the
	// surrounding transaction.
	GetOrCreateForUpdate(ctx context.Context, userID string) (*domain.Cart, error)
	// LockByUser locks an existing cart; ErrNotFound when the user has none.
	LockByUser(ctx context.Context, userID string) (*domain.Cart, error)
	// Save replaces the stored lines with c.Items.
	Save(ctx context.Context, c *domain.Cart) error
}
