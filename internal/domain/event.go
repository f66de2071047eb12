package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderCancelled     = "order.cancelled"
	EventOrderPaid          = "order.paid"
)

// OutboxEvent is a domain event stored with the business transaction and
// relayed to the broker afterwards.
type OutboxEvent struct {
	ID          string          `json:"id"`
	AggregateID string          `json:"aggregateId"`
	EventType   string          `json:"eventType"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"createdAt"`
	PublishedAt *time.Time      `json:"publishedAt,omitempty"`
	Attempts    int             `json:"attempts"`
}

// OrderEvent is the payload of every order.* event.
type OrderEvent struct {
	OrderID    string      `json:"orderId"`
	UserID     string      `json:"userId"`
	Status     OrderStatus `json:"status"`
	Previous   OrderStatus `json:"previousStatus,omitempty"`
	TotalPrice string      `json:"totalPrice"`
	OccurredAt time.Time   `json:"occurredAt"`
}

// NewOrderEvent builds the outbox record for an order state change.
func NewOrderEvent(eventType string, o *Order, previous OrderStatus) (OutboxEvent, error) {
	now := time.Now().UTC()
	payload, err := json.Marshal(OrderEvent{
		OrderID:    o.ID,
		UserID:     o.UserID,
		Status:     o.Status,
		Previous:   previous,
		TotalPrice: o.TotalPrice.StringFixed(2),
		OccurredAt: now,
	})
	if err != nil {
		return OutboxEvent{}, err
	}
	return OutboxEvent{
		ID:          uuid.NewString(),
		AggregateID: o.ID,
		EventType:   eventType,
		Payload:     payload,
		CreatedAt:   now,
	}, nil
}
