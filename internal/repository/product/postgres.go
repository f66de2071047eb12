package product

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"storefront/internal/db"
	"storefront/internal/domain"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

const selectColumns = `
SELECT id::text, title, description, price::text, inventory, category_id::text, image_urls, created_at, updated_at
FROM products
`

var sortColumns = map[string]string{
	"":            "created_at DESC",
	"created_at":  "created_at DESC",
	"-created_at": "created_at ASC",
	"price":       "price ASC, id",
	"-price":      "price DESC, id",
	"title":       "title ASC",
	"-title":      "title DESC",
}

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger logrus.FieldLogger
}

func NewPostgres(pool *pgxpool.Pool, logger logrus.FieldLogger) Repository {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &postgresRepo{pool: pool, logger: logger.WithField("component", "product-repo")}
}

func (r *postgresRepo) List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	order, ok := sortColumns[filter.Sort]
	if !ok {
		return nil, domain.Invalid("product.List", "unsupported sort %q", filter.Sort)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	if filter.CategoryID != "" && !db.ValidID(filter.CategoryID) {
		return []domain.Product{}, nil
	}

	q := selectColumns + `
WHERE ($1::text = '' OR category_id = NULLIF($1, '')::uuid)
ORDER BY ` + order + `
LIMIT $2 OFFSET $3
`
	rows, err := db.Conn(ctx, r.pool).Query(ctx, q, filter.CategoryID, limit, offset)
	if err != nil {
		r.logger.WithError(err).Error("list products")
		return nil, err
	}
	defer rows.Close()

	result := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	r.logger.WithField("count", len(result)).Debug("listed products")
	return result, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	return r.get(ctx, selectColumns+`WHERE id = $1::uuid`, id)
}

func (r *postgresRepo) GetForUpdate(ctx context.Context, id string) (*domain.Product, error) {
	if !db.InTx(ctx) {
		return nil, errors.New("product repo: GetForUpdate requires a transaction")
	}
	return r.get(ctx, selectColumns+`WHERE id = $1::uuid FOR UPDATE`, id)
}

func (r *postgresRepo) get(ctx context.Context, q, id string) (*domain.Product, error) {
	if !db.ValidID(id) {
		return nil, domain.ErrNotFound
	}
	p, err := scanProduct(db.Conn(ctx, r.pool).QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.WithError(err).WithField("product_id", id).Error("get product")
		return nil, err
	}
	return p, nil
}

func (r *postgresRepo) Create(ctx context.Context, p domain.Product) (*domain.Product, error) {
	const q = `
INSERT INTO products (id, title, description, price, inventory, category_id, image_urls)
VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4::numeric, $5, $6::uuid, $7)
RETURNING id::text, title, description, price::text, inventory, category_id::text, image_urls, created_at, updated_at
`
	res, err := scanProduct(db.Conn(ctx, r.pool).QueryRow(ctx, q,
		p.ID, p.Title, p.Description, p.Price.String(), p.Inventory, p.CategoryID, imageURLs(p.ImageURLs)))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, domain.ErrAlreadyExists
		}
		r.logger.WithError(err).WithField("title", p.Title).Error("create product")
		return nil, err
	}
	r.logger.WithField("product_id", res.ID).Info("created product")
	return res, nil
}

func (r *postgresRepo) Update(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if !db.ValidID(p.ID) {
		return nil, domain.ErrNotFound
	}
	const q = `
UPDATE products
SET title = $2, description = $3, price = $4::numeric, inventory = $5, category_id = $6::uuid, image_urls = $7, updated_at = now()
WHERE id = $1::uuid
RETURNING id::text, title, description, price::text, inventory, category_id::text, image_urls, created_at, updated_at
`
	res, err := scanProduct(db.Conn(ctx, r.pool).QueryRow(ctx, q,
		p.ID, p.Title, p.Description, p.Price.String(), p.Inventory, p.CategoryID, imageURLs(p.ImageURLs)))
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, domain.ErrNotFound
		case db.IsUniqueViolation(err):
			return nil, domain.ErrAlreadyExists
		}
		r.logger.WithError(err).WithField("product_id", p.ID).Error("update product")
		return nil, err
	}
	return res, nil
}

func (r *postgresRepo) Delete(ctx context.Context, id string) error {
	if !db.ValidID(id) {
		return domain.ErrNotFound
	}
	cmd, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM products WHERE id = $1::uuid`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DecrementInventory subtracts quantity only when enough stock remains and
// returns the new inventory.
func (r *postgresRepo) DecrementInventory(ctx context.Context, id string, quantity int) (int, error) {
	if !db.ValidID(id) {
		return 0, domain.ErrNotFound
	}
	const q = `
UPDATE products
SET inventory = inventory - $2, updated_at = now()
WHERE id = $1::uuid AND inventory >= $2
RETURNING inventory
`
	var remaining int
	err := db.Conn(ctx, r.pool).QueryRow(ctx, q, id, quantity).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1::uuid)`, id).Scan(&exists); err != nil {
			return 0, err
		}
		if !exists {
			return 0, domain.ErrNotFound
		}
		return 0, ErrInsufficientInventory
	}
	if err != nil {
		return 0, err
	}
	r.logger.WithField("product_id", id).WithField("remaining", remaining).Debug("decremented inventory")
	return remaining, nil
}

func (r *postgresRepo) UpsertByTitle(ctx context.Context, p domain.Product) (*domain.Product, error) {
	const q = `
INSERT INTO products (title, description, price, inventory, category_id, image_urls)
VALUES ($1, $2, $3::numeric, $4, $5::uuid, $6)
ON CONFLICT (title) DO UPDATE SET
    description = EXCLUDED.description,
    price = EXCLUDED.price,
    inventory = EXCLUDED.inventory,
    category_id = EXCLUDED.category_id,
    image_urls = EXCLUDED.image_urls,
    updated_at = now()
RETURNING id::text, title, description, price::text, inventory, category_id::text, image_urls, created_at, updated_at
`
	res, err := scanProduct(db.Conn(ctx, r.pool).QueryRow(ctx, q,
		p.Title, p.Description, p.Price.String(), p.Inventory, p.CategoryID, imageURLs(p.ImageURLs)))
	if err != nil {
		r.logger.WithError(err).WithField("title", p.Title).Error("upsert product")
		return nil, err
	}
	return res, nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var (
		p     domain.Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Title, &p.Description, &price, &p.Inventory, &p.CategoryID, &p.ImageURLs, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse price %q: %w", price, err)
	}
	p.Price = d
	if p.ImageURLs == nil {
		p.ImageURLs = []string{}
	}
	return &p, nil
}

func imageURLs(urls []string) []string {
	if urls == nil {
		return []string{}
	}
	return urls
}
