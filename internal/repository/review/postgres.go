package review

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

func (r *postgresRepo) Create(ctx context.Context, rv domain.Review) (*domain.Review, error) {
	const q = `
INSERT INTO reviews (product_id, user_id, rating, comment)
VALUES ($1::uuid, $2::uuid, $3, $4)
RETURNING id::text, product_id::text, user_id::text, rating, comment, created_at
`
	out, err := scanReview(db.Conn(ctx, r.pool).QueryRow(ctx, q, rv.ProductID, rv.UserID, rv.Rating, rv.Comment))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, err
	}
	return out, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	const q = `
SELECT id::text, product_id::text, user_id::text, rating, comment, created_at
FROM reviews
WHERE id = $1::uuid
`
	if !db.ValidID(id) {
		return nil, domain.ErrNotFound
	}
	out, err := scanReview(db.Conn(ctx, r.pool).QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return out, err
}

func (r *postgresRepo) ListByProduct(ctx context.Context, productID string) ([]domain.Review, error) {
	const q = `
SELECT id::text, product_id::text, user_id::text, rating, comment, created_at
FROM reviews
WHERE product_id = $1::uuid
ORDER BY created_at DESC
`
	if !db.ValidID(productID) {
		return []domain.Review{}, nil
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx, q, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Review{}
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rv)
	}
	return result, rows.Err()
}

func (r *postgresRepo) Delete(ctx context.Context, id string) error {
	if !db.ValidID(id) {
		return domain.ErrNotFound
	}
	cmd, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM reviews WHERE id = $1::uuid`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanReview(row pgx.Row) (*domain.Review, error) {
	var rv domain.Review
	if err := row.Scan(&rv.ID, &rv.ProductID, &rv.UserID, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
		return nil, err
	}
	return &rv, nil
}
