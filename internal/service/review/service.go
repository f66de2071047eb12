package review

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"storefront/internal/auth"
	"storefront/internal/domain"
)

type reviewRepo interface {
	Create(ctx context.Context, r domain.Review) (*domain.Review, error)
	GetByID(ctx context.Context, id string) (*domain.Review, error)
	ListByProduct(ctx context.Context, productID string) ([]domain.Review, error)
	Delete(ctx context.Context, id string) error
}

type productRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
}

type Service struct {
	repo     reviewRepo
	products productRepo
}

func New(repo reviewRepo, products productRepo) *Service {
	return &Service{repo: repo, products: products}
}

type CreateInput struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// Create records the caller's review. Each user reviews a product once.
func (s *Service) Create(ctx context.Context, caller domain.Identity, productID string, in CreateInput) (*domain.Review, error) {
	const op = "review.Create"
	r := domain.Review{
		ID:        uuid.NewString(),
		ProductID: productID,
		UserID:    caller.UserID,
		Rating:    in.Rating,
		Comment:   strings.TrimSpace(in.Comment),
		CreatedAt: time.Now().UTC(),
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NotFound(op, "product", productID)
		}
		return nil, domain.Internal(err, op, "load product")
	}

	created, err := s.repo.Create(ctx, r)
	if errors.Is(err, domain.ErrAlreadyExists) {
		return nil, domain.Conflict(op, "product %s already reviewed by this user", productID)
	}
	if err != nil {
		return nil, domain.Internal(err, op, "create review")
	}
	return created, nil
}

func (s *Service) List(ctx context.Context, productID string) ([]domain.Review, error) {
	items, err := s.repo.ListByProduct(ctx, productID)
	return items, domain.Internal(err, "review.List", "list reviews")
}

// Delete removes a review written by the caller. Admins may delete any review.
func (s *Service) Delete(ctx context.Context, caller domain.Identity, id string) error {
	const op = "review.Delete"
	r, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NotFound(op, "review", id)
	}
	if err != nil {
		return domain.Internal(err, op, "load review")
	}
	if !auth.AuthorizeIdentity(caller, r.UserID) {
		return domain.Forbidden(op, "only the author or an admin may delete a review")
	}
	if err := s.repo.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.Internal(err, op, "delete review")
	}
	return nil
}
