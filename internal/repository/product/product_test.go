package product

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/db"
	"storefront/internal/db/dbtest"
	"storefront/internal/domain"
)

func TestPostgres_CreateGetUpdate(t *testing.T) {
	pool := dbtest.Pool(t)
	ctx := context.Background()
	repo := NewPostgres(pool, nil)

	created, err := repo.Create(ctx, domain.Product{
		Title:     "Mug",
		Price:     decimal.RequireFromString("12.50"),
		Inventory: 4,
		ImageURLs: []string{"https://img.example/mug.png"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.Price.Equal(decimal.RequireFromString("12.50")))

	_, err = repo.Create(ctx, domain.Product{Title: "Mug", Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	created.Inventory = 9
	updated, err := repo.Update(ctx, *created)
	require.NoError(t, err)
	assert.Equal(t, 9, updated.Inventory)

	fetched, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://img.example/mug.png"}, fetched.ImageURLs)

	_, err = repo.GetByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgres_DecrementInventory(t *testing.T) {
	pool := dbtest.Pool(t)
	ctx := context.Background()
	repo := NewPostgres(pool, nil)
	id := dbtest.InsertProduct(t, pool, "Lamp", "30.00", 5)

	remaining, err := repo.DecrementInventory(ctx, id, 5)
	require.NoError(t, err)
	assert.Zero(t, remaining)

	_, err = repo.DecrementInventory(ctx, id, 1)
	assert.ErrorIs(t, err, ErrInsufficientInventory)

	_, err = repo.DecrementInventory(ctx, "00000000-0000-0000-0000-000000000000", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgres_GetForUpdateRequiresTx(t *testing.T) {
	pool := dbtest.Pool(t)
	ctx := context.Background()
	repo := NewPostgres(pool, nil)
	id := dbtest.InsertProduct(t, pool, "Desk", "100.00", 1)

	_, err := repo.GetForUpdate(ctx, id)
	assert.Error(t, err)

	err = db.NewTxManager(pool).WithinTx(ctx, func(ctx context.Context) error {
		p, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		assert.Equal(t, "Desk", p.Title)
		return nil
	})
	require.NoError(t, err)
}

func TestPostgres_MalformedIDIsNotFound(t *testing.T) {
	pool := dbtest.Pool(t)
	ctx := context.Background()
	repo := NewPostgres(pool, nil)

	_, err := repo.GetByID(ctx, "lamp")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "lamp"), domain.ErrNotFound)
	_, err = repo.Update(ctx, domain.Product{ID: "lamp", Title: "Lamp"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	listed, err := repo.List(ctx, domain.ProductFilter{CategoryID: "lighting"})
	require.NoError(t, err)
	assert.Empty(t, listed)

	err = db.NewTxManager(pool).WithinTx(ctx, func(ctx context.Context) error {
		_, err := repo.DecrementInventory(ctx, "lamp", 1)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = repo.List(ctx, domain.ProductFilter{})
		return err
	})
	require.NoError(t, err)
}

func TestPostgres_ListSortAndFilter(t *testing.T) {
	pool := dbtest.Pool(t)
	ctx := context.Background()
	repo := NewPostgres(pool, nil)
	dbtest.InsertProduct(t, pool, "B", "20.00", 1)
	dbtest.InsertProduct(t, pool, "A", "10.00", 1)

	list, err := repo.List(ctx, domain.ProductFilter{Sort: "price"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "A", list[0].Title)

	list, err = repo.List(ctx, domain.ProductFilter{Sort: "-price", Limit: 1})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "B", list[0].Title)

	_, err = repo.List(ctx, domain.ProductFilter{Sort: "random"})
	assert.True(t, domain.IsKind(err, domain.KindInvalidInput))
}
