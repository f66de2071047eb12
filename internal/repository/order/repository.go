package order

import (
	"context"
	"time"

	"storefront/internal/domain"
)

type Repository interface {
	// Create stores the order header and all of its lines.
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetForUpdate(ctx context.Context, id string) (*domain.Order, error)
	GetByPaymentSessionForUpdate(ctx context.Context, sessionID string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error
	AttachPaymentSession(ctx context.Context, id, sessionID, checkoutURL string, status domain.OrderStatus) error
	// MarkPaid sets Completed and paid_at only when the row is still in
	// expected and unpaid. It reports whether the row changed.
	MarkPaid(ctx context.Context, id string, expected domain.OrderStatus, paidAt time.Time) (bool, error)
}
