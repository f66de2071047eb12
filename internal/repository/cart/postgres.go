package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/db"
	"storefront/internal/domain"
)

var errNoTx = errors.New("cart repo: locking reads require a transaction")

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) GetByUser(ctx context.Context, userID string) (*domain.Cart, error) {
	const q = `
SELECT id::text, user_id::text, created_at, updated_at
FROM carts
WHERE user_id = $1::uuid
`
	if !db.ValidID(userID) {
		return nil, domain.ErrNotFound
	}
	return r.fetchCart(ctx, q, userID)
}

func (r *postgresRepo) GetOrCreateForUpdate(ctx context.Context, userID string) (*domain.Cart, error) {
	if !db.InTx(ctx) {
		return nil, errNoTx
	}
	if !db.ValidID(userID) {
		return nil, domain.ErrNotFound
	}
	const insert = `
INSERT INTO carts (id, user_id)
VALUES ($1, $2::uuid)
ON CONFLICT (user_id) DO NOTHING
`
	if _, err := db.Conn(ctx, r.pool).Exec(ctx, insert, uuid.NewString(), userID); err != nil {
		if db.IsForeignKeyViolation(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return r.LockByUser(ctx, userID)
}

func (r *postgresRepo) LockByUser(ctx context.Context, userID string) (*domain.Cart, error) {
	if !db.InTx(ctx) {
		return nil, errNoTx
	}
	const q = `
SELECT id::text, user_id::text, created_at, updated_at
FROM carts
WHERE user_id = $1::uuid
FOR UPDATE
`
	if !db.ValidID(userID) {
		return nil, domain.ErrNotFound
	}
	return r.fetchCart(ctx, q, userID)
}

func (r *postgresRepo) Save(ctx context.Context, c *domain.Cart) error {
	conn := db.Conn(ctx, r.pool)

	ids := make([]string, 0, len(c.Items))
	for _, it := range c.Items {
		ids = append(ids, it.ID)
	}
	if _, err := conn.Exec(ctx, `
DELETE FROM cart_items
WHERE cart_id = $1::uuid AND NOT (id = ANY($2::text[]::uuid[]))
`, c.ID, ids); err != nil {
		return err
	}

	for _, it := range c.Items {
		if _, err := conn.Exec(ctx, `
INSERT INTO cart_items (id, cart_id, product_id, quantity, ordered)
VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5)
ON CONFLICT (id) DO UPDATE SET quantity = EXCLUDED.quantity, ordered = EXCLUDED.ordered
`, it.ID, c.ID, it.ProductID, it.Quantity, it.Ordered); err != nil {
			return err
		}
	}

	cmd, err := conn.Exec(ctx, `UPDATE carts SET updated_at = $2 WHERE id = $1::uuid`, c.ID, c.UpdatedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) fetchCart(ctx context.Context, cartQuery string, args ...any) (*domain.Cart, error) {
	conn := db.Conn(ctx, r.pool)

	var c domain.Cart
	if err := conn.QueryRow(ctx, cartQuery, args...).Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	rows, err := conn.Query(ctx, `
SELECT ci.id::text, ci.cart_id::text, ci.product_id::text, ci.quantity, ci.ordered
FROM cart_items ci
WHERE ci.cart_id = $1::uuid
ORDER BY ci.created_at, ci.id
`, c.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	c.Items = []domain.CartItem{}
	for rows.Next() {
		var it domain.CartItem
		if err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Quantity, &it.Ordered); err != nil {
			return nil, err
		}
		c.Items = append(c.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &c, nil
}
