// Package events publishes order events to the message broker.
package events

import (
	"context"

	"storefront/internal/domain"
)

// Publisher delivers one outbox event. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e domain.OutboxEvent) error
	Close() error
}
