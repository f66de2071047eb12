package events

import (
	"context"

	"github.com/sirupsen/logrus"

	"storefront/internal/domain"
)

// LogPublisher logs events instead of sending them. It is used when no
// brokers are configured.
type LogPublisher struct {
	logger logrus.FieldLogger
}

func NewLogPublisher(logger logrus.FieldLogger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, e domain.OutboxEvent) error {
	p.logger.WithFields(logrus.Fields{
		"event_id":     e.ID,
		"event_type":   e.EventType,
		"aggregate_id": e.AggregateID,
		"payload":      string(e.Payload),
	}).Info("event published")
	return nil
}

func (p *LogPublisher) Close() error { return nil }
