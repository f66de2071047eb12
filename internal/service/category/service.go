package category

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"storefront/internal/domain"
)

type categoryRepo interface {
	List(ctx context.Context) ([]domain.Category, error)
	GetByKey(ctx context.Context, key string) (*domain.Category, error)
	Create(ctx context.Context, c domain.Category) (*domain.Category, error)
	Upsert(ctx context.Context, c domain.Category) (*domain.Category, error)
}

type Service struct {
	repo categoryRepo
}

func New(repo categoryRepo) *Service {
	return &Service{repo: repo}
}

var keyPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

func (s *Service) List(ctx context.Context) ([]domain.Category, error) {
	items, err := s.repo.List(ctx)
	return items, domain.Internal(err, "category.List", "list categories")
}

func (s *Service) Create(ctx context.Context, c domain.Category) (*domain.Category, error) {
	const op = "category.Create"
	c, err := normalize(op, c)
	if err != nil {
		return nil, err
	}
	created, err := s.repo.Create(ctx, c)
	if errors.Is(err, domain.ErrAlreadyExists) {
		return nil, domain.Conflict(op, "category %q already exists", c.Key)
	}
	if err != nil {
		return nil, domain.Internal(err, op, "create category")
	}
	return created, nil
}

// Upsert creates the category or renames the one with the same key.
func (s *Service) Upsert(ctx context.Context, c domain.Category) (*domain.Category, error) {
	const op = "category.Upsert"
	c, err := normalize(op, c)
	if err != nil {
		return nil, err
	}
	out, err := s.repo.Upsert(ctx, c)
	return out, domain.Internal(err, op, "upsert category")
}

func (s *Service) GetByKey(ctx context.Context, key string) (*domain.Category, error) {
	const op = "category.GetByKey"
	c, err := s.repo.GetByKey(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NotFound(op, "category", key)
	}
	return c, domain.Internal(err, op, "load category")
}

func normalize(op string, c domain.Category) (domain.Category, error) {
	c.Key = strings.ToLower(strings.TrimSpace(c.Key))
	c.Name = strings.TrimSpace(c.Name)
	if !keyPattern.MatchString(c.Key) {
		return c, domain.Invalid(op, "key must be lowercase letters, digits and dashes")
	}
	if c.Name == "" {
		return c, domain.Invalid(op, "name is required")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return c, nil
}
