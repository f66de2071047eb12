package outbox

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/db"
	"storefront/internal/domain"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) Enqueue(ctx context.Context, e domain.OutboxEvent) error {
	const q = `
INSERT INTO outbox_events (id, aggregate_id, event_type, payload, created_at)
VALUES ($1::uuid, $2, $3, $4::jsonb, $5)
`
	_, err := db.Conn(ctx, r.pool).Exec(ctx, q, e.ID, e.AggregateID, e.EventType, string(e.Payload), e.CreatedAt)
	return err
}

func (r *postgresRepo) FetchPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	const q = `
SELECT id::text, aggregate_id, event_type, payload, attempts, created_at
FROM outbox_events
WHERE published_at IS NULL
ORDER BY created_at
LIMIT $1
FOR UPDATE SKIP LOCKED
`
	rows, err := db.Conn(ctx, r.pool).Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.OutboxEvent
	for rows.Next() {
		var (
			e       domain.OutboxEvent
			payload []byte
		)
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &payload, &e.Attempts, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Payload = payload
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *postgresRepo) MarkPublished(ctx context.Context, id string) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
UPDATE outbox_events SET published_at = now(), attempts = attempts + 1, last_error = ''
WHERE id = $1::uuid
`, id)
	return err
}

func (r *postgresRepo) MarkFailed(ctx context.Context, id string, reason string) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
UPDATE outbox_events SET attempts = attempts + 1, last_error = $2
WHERE id = $1::uuid
`, id, reason)
	return err
}

func (r *postgresRepo) CountPending(ctx context.Context) (int, error) {
	var n int
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT count(*) FROM outbox_events WHERE published_at IS NULL`).Scan(&n)
	return n, err
}
