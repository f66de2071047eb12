package product

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"storefront/internal/cache"
	"storefront/internal/db"
	"storefront/internal/domain"
	"storefront/internal/metrics"
)

type productRepo interface {
	List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	GetForUpdate(ctx context.Context, id string) (*domain.Product, error)
	Create(ctx context.Context, p domain.Product) (*domain.Product, error)
	Update(ctx context.Context, p domain.Product) (*domain.Product, error)
	Delete(ctx context.Context, id string) error
}

// Service is the catalog. Single-product reads go through the product cache
// when one is configured; every write drops the cached entry after commit.
type Service struct {
	tx      db.Transactor
	repo    productRepo
	cache   *cache.Typed[domain.Product]
	metrics *metrics.Business
	logger  logrus.FieldLogger
}

func New(tx db.Transactor, repo productRepo, c *cache.Typed[domain.Product], m *metrics.Business, logger logrus.FieldLogger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{tx: tx, repo: repo, cache: c, metrics: m, logger: logger}
}

var sorts = map[string]bool{
	"": true, "created_at": true, "-created_at": true,
	"price": true, "-price": true, "title": true, "-title": true,
}

func (s *Service) List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	const op = "product.List"
	if !sorts[filter.Sort] {
		return nil, domain.Invalid(op, "unsupported sort %q", filter.Sort)
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		return nil, domain.Invalid(op, "offset must not be negative")
	}
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, domain.Internal(err, op, "list products")
	}
	return items, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Product, error) {
	const op = "product.Get"
	load := func(ctx context.Context) (*domain.Product, error) {
		p, err := s.repo.GetByID(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NotFound(op, "product", id)
		}
		return p, err
	}
	if s.cache == nil {
		p, err := load(ctx)
		if err != nil {
			return nil, domain.Internal(err, op, "load product")
		}
		return p, nil
	}
	p, hit, err := s.cache.GetOrLoad(ctx, cache.ProductKey(id), load)
	if err != nil {
		return nil, domain.Internal(err, op, "load product")
	}
	s.metrics.CacheLookup("product", hit)
	return p, nil
}

func (s *Service) Create(ctx context.Context, p domain.Product) (*domain.Product, error) {
	const op = "product.Create"
	p.Title = strings.TrimSpace(p.Title)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	p.ID = uuid.NewString()
	p.CreatedAt, p.UpdatedAt = now, now
	if p.ImageURLs == nil {
		p.ImageURLs = []string{}
	}

	created, err := s.repo.Create(ctx, p)
	if errors.Is(err, domain.ErrAlreadyExists) {
		return nil, domain.Conflict(op, "product %q already exists", p.Title)
	}
	if err != nil {
		return nil, domain.Internal(err, op, "create product")
	}
	return created, nil
}

// Update applies the set fields of u to the product.
func (s *Service) Update(ctx context.Context, id string, u domain.ProductUpdate) (*domain.Product, error) {
	const op = "product.Update"
	if u.Empty() {
		return nil, domain.Invalid(op, "no fields to update")
	}

	var out *domain.Product
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetForUpdate(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NotFound(op, "product", id)
		}
		if err != nil {
			return err
		}
		if err := u.Apply(p); err != nil {
			return err
		}
		p.UpdatedAt = time.Now().UTC()

		updated, err := s.repo.Update(ctx, *p)
		if errors.Is(err, domain.ErrAlreadyExists) {
			return domain.Conflict(op, "product %q already exists", p.Title)
		}
		if err != nil {
			return err
		}
		db.AfterCommit(ctx, func(ctx context.Context) { s.invalidate(ctx, id) })
		out = updated
		return nil
	})
	if err != nil {
		return nil, domain.Internal(err, op, "update product")
	}
	return out, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	const op = "product.Delete"
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NotFound(op, "product", id)
	}
	if err != nil {
		return domain.Internal(err, op, "delete product")
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *Service) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, cache.ProductKey(id)); err != nil {
		s.logger.WithError(err).WithField("product_id", id).Warn("invalidate product cache")
	}
}
