package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"storefront/internal/db"
	"storefront/internal/domain"
)

const selectOrder = `
SELECT id::text, user_id::text, shipping_address_id::text, status, total_price::text,
       COALESCE(payment_session_id, ''), checkout_url, paid_at, created_at, updated_at
FROM orders
`

var errNoTx = errors.New("order repo: locking reads require a transaction")

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger logrus.FieldLogger
}

func NewPostgres(pool *pgxpool.Pool, logger logrus.FieldLogger) Repository {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &postgresRepo{pool: pool, logger: logger.WithField("component", "order-repo")}
}

func (r *postgresRepo) Create(ctx context.Context, o *domain.Order) error {
	conn := db.Conn(ctx, r.pool)

	const insertOrder = `
INSERT INTO orders (id, user_id, shipping_address_id, status, total_price, created_at, updated_at)
VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5::numeric, $6, $7)
`
	if _, err := conn.Exec(ctx, insertOrder, o.ID, o.UserID, o.ShippingAddressID, string(o.Status),
		o.TotalPrice.String(), o.CreatedAt, o.UpdatedAt); err != nil {
		return err
	}

	const insertItem = `
INSERT INTO order_items (id, order_id, quantity, price, snapshot)
VALUES ($1::uuid, $2::uuid, $3, $4::numeric, $5::jsonb)
`
	for _, it := range o.Items {
		snapshot, err := json.Marshal(it.Snapshot)
		if err != nil {
			return fmt.Errorf("marshal snapshot: %w", err)
		}
		if _, err := conn.Exec(ctx, insertItem, it.ID, o.ID, it.Quantity, it.Price.String(), string(snapshot)); err != nil {
			return err
		}
	}
	r.logger.WithField("order_id", o.ID).WithField("items", len(o.Items)).Debug("stored order")
	return nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if !db.ValidID(id) {
		return nil, domain.ErrNotFound
	}
	return r.fetchOrder(ctx, selectOrder+`WHERE id = $1::uuid`, id)
}

func (r *postgresRepo) GetForUpdate(ctx context.Context, id string) (*domain.Order, error) {
	if !db.InTx(ctx) {
		return nil, errNoTx
	}
	if !db.ValidID(id) {
		return nil, domain.ErrNotFound
	}
	return r.fetchOrder(ctx, selectOrder+`WHERE id = $1::uuid FOR UPDATE`, id)
}

func (r *postgresRepo) GetByPaymentSessionForUpdate(ctx context.Context, sessionID string) (*domain.Order, error) {
	if !db.InTx(ctx) {
		return nil, errNoTx
	}
	return r.fetchOrder(ctx, selectOrder+`WHERE payment_session_id = $1 FOR UPDATE`, sessionID)
}

func (r *postgresRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if !db.ValidID(userID) {
		return []domain.Order{}, nil
	}
	conn := db.Conn(ctx, r.pool)
	rows, err := conn.Query(ctx, selectOrder+`
WHERE user_id = $1::uuid
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, *o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]domain.Order, 0, len(orders))
	for i := range orders {
		items, err := r.loadItems(ctx, conn, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].ReplaceItems(items)
		result = append(result, orders[i])
	}
	return result, nil
}

func (r *postgresRepo) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	if !db.ValidID(id) {
		return domain.ErrNotFound
	}
	cmd, err := db.Conn(ctx, r.pool).Exec(ctx, `
UPDATE orders SET status = $2, updated_at = now()
WHERE id = $1::uuid
`, id, string(status))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) AttachPaymentSession(ctx context.Context, id, sessionID, checkoutURL string, status domain.OrderStatus) error {
	if !db.ValidID(id) {
		return domain.ErrNotFound
	}
	cmd, err := db.Conn(ctx, r.pool).Exec(ctx, `
UPDATE orders SET payment_session_id = $2, checkout_url = $3, status = $4, updated_at = now()
WHERE id = $1::uuid
`, id, sessionID, checkoutURL, string(status))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) MarkPaid(ctx context.Context, id string, expected domain.OrderStatus, paidAt time.Time) (bool, error) {
	if !db.ValidID(id) {
		return false, nil
	}
	cmd, err := db.Conn(ctx, r.pool).Exec(ctx, `
UPDATE orders SET status = $3, paid_at = $4, updated_at = now()
WHERE id = $1::uuid AND status = $2 AND paid_at IS NULL
`, id, string(expected), string(domain.OrderStatusCompleted), paidAt)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *postgresRepo) fetchOrder(ctx context.Context, q string, arg string) (*domain.Order, error) {
	conn := db.Conn(ctx, r.pool)
	o, err := scanOrder(conn.QueryRow(ctx, q, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || db.IsInvalidText(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	items, err := r.loadItems(ctx, conn, o.ID)
	if err != nil {
		return nil, err
	}
	stored := o.TotalPrice
	o.ReplaceItems(items)
	if !stored.Equal(o.TotalPrice) {
		r.logger.WithField("order_id", o.ID).
			WithField("stored_total", stored.String()).
			WithField("derived_total", o.TotalPrice.String()).
			Warn("stored order total differs from its lines")
	}
	return o, nil
}

func (r *postgresRepo) loadItems(ctx context.Context, conn db.Querier, orderID string) ([]domain.OrderItem, error) {
	rows, err := conn.Query(ctx, `
SELECT id::text, order_id::text, quantity, price::text, snapshot
FROM order_items
WHERE order_id = $1::uuid
ORDER BY created_at, id
`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []domain.OrderItem{}
	for rows.Next() {
		var (
			it       domain.OrderItem
			price    string
			snapshot []byte
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &it.Quantity, &price, &snapshot); err != nil {
			return nil, err
		}
		if it.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse item price %q: %w", price, err)
		}
		if err := json.Unmarshal(snapshot, &it.Snapshot); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o      domain.Order
		status string
		total  string
	)
	if err := row.Scan(&o.ID, &o.UserID, &o.ShippingAddressID, &status, &total,
		&o.PaymentSessionID, &o.CheckoutURL, &o.PaidAt, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	d, err := decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("parse total %q: %w", total, err)
	}
	o.TotalPrice = d
	return &o, nil
}
