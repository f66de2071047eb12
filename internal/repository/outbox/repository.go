package outbox

import (
	"context"

	"storefront/internal/domain"
)

type Repository interface {
	// Enqueue stores an event in the caller's transaction.
	Enqueue(ctx context.Context, e domain.OutboxEvent) error
	// FetchPending locks up to limit unpublished events. The locks are held
	// until the surrounding transaction ends.
	FetchPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, reason string) error
	CountPending(ctx context.Context) (int, error)
}
