package review

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/service/servicetest"
)

type memoryRepo struct {
	byID map[string]domain.Review
}

func (r *memoryRepo) Create(_ context.Context, in domain.Review) (*domain.Review, error) {
	for _, existing := range r.byID {
		if existing.ProductID == in.ProductID && existing.UserID == in.UserID {
			return nil, domain.ErrAlreadyExists
		}
	}
	r.byID[in.ID] = in
	return &in, nil
}

func (r *memoryRepo) GetByID(_ context.Context, id string) (*domain.Review, error) {
	v, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &v, nil
}

func (r *memoryRepo) ListByProduct(_ context.Context, productID string) ([]domain.Review, error) {
	out := []domain.Review{}
	for _, v := range r.byID {
		if v.ProductID == productID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *memoryRepo) Delete(_ context.Context, id string) error {
	delete(r.byID, id)
	return nil
}

var (
	alice = domain.Identity{UserID: "alice", Role: domain.RoleCustomer}
	bob   = domain.Identity{UserID: "bob", Role: domain.RoleCustomer}
	admin = domain.Identity{UserID: "root", Role: domain.RoleAdmin}
)

func TestCreateAndList(t *testing.T) {
	store := servicetest.NewStore()
	pid := store.AddProduct("Lamp", "10.00", 1)
	svc := New(&memoryRepo{byID: map[string]domain.Review{}}, store.Products())

	r, err := svc.Create(context.Background(), alice, pid, CreateInput{Rating: 5, Comment: " great "})
	require.NoError(t, err)
	assert.Equal(t, "great", r.Comment)

	_, err = svc.Create(context.Background(), alice, pid, CreateInput{Rating: 4})
	assert.True(t, domain.IsKind(err, domain.KindConflict))

	_, err = svc.Create(context.Background(), bob, pid, CreateInput{Rating: 6})
	assert.True(t, domain.IsKind(err, domain.KindInvalidInput))

	_, err = svc.Create(context.Background(), bob, "missing", CreateInput{Rating: 3})
	assert.True(t, domain.IsKind(err, domain.KindNotFound))

	items, err := svc.List(context.Background(), pid)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestDeleteRequiresAuthorOrAdmin(t *testing.T) {
	store := servicetest.NewStore()
	pid := store.AddProduct("Lamp", "10.00", 1)
	repo := &memoryRepo{byID: map[string]domain.Review{}}
	svc := New(repo, store.Products())

	r, err := svc.Create(context.Background(), alice, pid, CreateInput{Rating: 2})
	require.NoError(t, err)

	err = svc.Delete(context.Background(), bob, r.ID)
	assert.True(t, domain.IsKind(err, domain.KindForbidden))

	require.NoError(t, svc.Delete(context.Background(), admin, r.ID))
	assert.Empty(t, repo.byID)

	err = svc.Delete(context.Background(), alice, r.ID)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}
