package address

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
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

func (r *postgresRepo) Create(ctx context.Context, a domain.Address) (*domain.Address, error) {
	const q = `
INSERT INTO addresses (user_id, full_name, line1, line2, city, postal_code, country)
VALUES ($1::uuid, $2, $3, $4, $5, $6, $7)
RETURNING id::text, user_id::text, full_name, line1, line2, city, postal_code, country, created_at
`
	return scanAddress(db.Conn(ctx, r.pool).QueryRow(ctx, q, a.UserID, a.FullName, a.Line1, a.Line2, a.City, a.PostalCode, a.Country))
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Address, error) {
	const q = `
SELECT id::text, user_id::text, full_name, line1, line2, city, postal_code, country, created_at
FROM addresses
WHERE id = $1::uuid
`
	if !db.ValidID(id) {
		return nil, domain.ErrNotFound
	}
	a, err := scanAddress(db.Conn(ctx, r.pool).QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return a, err
}

func scanAddress(row pgx.Row) (*domain.Address, error) {
	var a domain.Address
	if err := row.Scan(&a.ID, &a.UserID, &a.FullName, &a.Line1, &a.Line2, &a.City, &a.PostalCode, &a.Country, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}
