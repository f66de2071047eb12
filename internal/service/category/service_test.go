package category

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
)

type stubRepo struct {
	byKey map[string]domain.Category
}

func (s *stubRepo) List(context.Context) ([]domain.Category, error) {
	out := []domain.Category{}
	for _, c := range s.byKey {
		out = append(out, c)
	}
	return out, nil
}

func (s *stubRepo) GetByKey(_ context.Context, key string) (*domain.Category, error) {
	c, ok := s.byKey[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (s *stubRepo) Create(_ context.Context, c domain.Category) (*domain.Category, error) {
	if _, ok := s.byKey[c.Key]; ok {
		return nil, domain.ErrAlreadyExists
	}
	s.byKey[c.Key] = c
	return &c, nil
}

func (s *stubRepo) Upsert(_ context.Context, c domain.Category) (*domain.Category, error) {
	if existing, ok := s.byKey[c.Key]; ok {
		c.ID = existing.ID
	}
	s.byKey[c.Key] = c
	return &c, nil
}

func TestCreateNormalizesKey(t *testing.T) {
	svc := New(&stubRepo{byKey: map[string]domain.Category{}})

	c, err := svc.Create(context.Background(), domain.Category{Key: " Lamps ", Name: "Lamps"})
	require.NoError(t, err)
	assert.Equal(t, "lamps", c.Key)
	assert.NotEmpty(t, c.ID)

	_, err = svc.Create(context.Background(), domain.Category{Key: "lamps", Name: "Again"})
	assert.True(t, domain.IsKind(err, domain.KindConflict))

	_, err = svc.Create(context.Background(), domain.Category{Key: "no spaces", Name: "x"})
	assert.True(t, domain.IsKind(err, domain.KindInvalidInput))
}

func TestUpsertKeepsID(t *testing.T) {
	repo := &stubRepo{byKey: map[string]domain.Category{}}
	svc := New(repo)

	first, err := svc.Upsert(context.Background(), domain.Category{Key: "mugs", Name: "Mugs"})
	require.NoError(t, err)
	second, err := svc.Upsert(context.Background(), domain.Category{Key: "mugs", Name: "Cups & Mugs"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	got, err := svc.GetByKey(context.Background(), "mugs")
	require.NoError(t, err)
	assert.Equal(t, "Cups & Mugs", got.Name)

	_, err = svc.GetByKey(context.Background(), "lamps")
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}
