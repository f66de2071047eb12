// Package outbox relays stored order events to the broker.
package outbox

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"storefront/internal/db"
	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/metrics"
)

type eventRepo interface {
	FetchPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, reason string) error
	CountPending(ctx context.Context) (int, error)
}

// Relay polls unpublished events and hands them to a Publisher. Rows are
// claimed with SKIP LOCKED, so several relays may run side by side; delivery
// is at least once.
type Relay struct {
	tx        db.Transactor
	repo      eventRepo
	publisher events.Publisher
	interval  time.Duration
	batchSize int
	metrics   *metrics.Business
	logger    logrus.FieldLogger
}

type Option func(*Relay)

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithMetrics(m *metrics.Business) Option {
	return func(r *Relay) { r.metrics = m }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Relay) { r.logger = l }
}

func NewRelay(tx db.Transactor, repo eventRepo, publisher events.Publisher, opts ...Option) *Relay {
	r := &Relay{
		tx:        tx,
		repo:      repo,
		publisher: publisher,
		interval:  time.Second,
		batchSize: 100,
		logger:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	r.logger.WithField("interval", r.interval.String()).Info("outbox relay started")
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return
		case <-ticker.C:
			if _, err := r.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.WithError(err).Error("outbox relay batch")
			}
		}
	}
}

// ProcessOnce publishes one batch and returns how many events were
// delivered. A failed publish is recorded on the row and retried on a later
// batch.
func (r *Relay) ProcessOnce(ctx context.Context) (int, error) {
	published := 0
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		pending, err := r.repo.FetchPending(ctx, r.batchSize)
		if err != nil {
			return err
		}
		for _, e := range pending {
			log := r.logger.WithField("event_id", e.ID).WithField("event_type", e.EventType)
			if err := r.publisher.Publish(ctx, e); err != nil {
				r.metrics.OutboxResult("failed")
				log.WithError(err).Warn("publish event")
				if err := r.repo.MarkFailed(ctx, e.ID, err.Error()); err != nil {
					return err
				}
				continue
			}
			if err := r.repo.MarkPublished(ctx, e.ID); err != nil {
				return err
			}
			r.metrics.OutboxResult("published")
			published++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if n, err := r.repo.CountPending(ctx); err == nil {
		r.metrics.OutboxBacklog(n)
	}
	return published, nil
}
