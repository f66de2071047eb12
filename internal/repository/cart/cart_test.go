package cart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/db"
	"storefront/internal/db/dbtest"
	"storefront/internal/domain"
)

func TestPostgres_GetOrCreateAndSave(t *testing.T) {
	pool := dbtest.Pool(t)
	ctx := context.Background()
	repo := NewPostgres(pool)
	tm := db.NewTxManager(pool)

	userID := dbtest.InsertUser(t, pool, "cart@example.com")
	p1 := dbtest.InsertProduct(t, pool, "P1", "10.00", 5)
	p2 := dbtest.InsertProduct(t, pool, "P2", "20.00", 5)

	_, err := repo.GetByUser(ctx, userID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = repo.GetOrCreateForUpdate(ctx, userID)
	assert.Error(t, err, "locking read outside a transaction")

	err = tm.WithinTx(ctx, func(ctx context.Context) error {
		c, err := repo.GetOrCreateForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		require.NoError(t, c.AddItem(p1, 2))
		require.NoError(t, c.AddItem(p2, 3))
		return repo.Save(ctx, c)
	})
	require.NoError(t, err)

	stored, err := repo.GetByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	assert.Equal(t, p1, stored.Items[0].ProductID, "lines come back in insertion order")
	assert.Equal(t, p2, stored.Items[1].ProductID)

	err = tm.WithinTx(ctx, func(ctx context.Context) error {
		c, err := repo.GetOrCreateForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		assert.Equal(t, stored.ID, c.ID, "cart is created once per user")
		require.NoError(t, c.RemoveItem(p1, 2))
		return repo.Save(ctx, c)
	})
	require.NoError(t, err)

	stored, err = repo.GetByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, p2, stored.Items[0].ProductID)
	assert.Equal(t, 3, stored.Items[0].Quantity)
}

func TestPostgres_OrderedQuantityPersists(t *testing.T) {
	pool := dbtest.Pool(t)
	ctx := context.Background()
	repo := NewPostgres(pool)
	tm := db.NewTxManager(pool)

	userID := dbtest.InsertUser(t, pool, "ordered@example.com")
	pid := dbtest.InsertProduct(t, pool, "Ordered", "5.00", 5)

	err := tm.WithinTx(ctx, func(ctx context.Context) error {
		c, err := repo.GetOrCreateForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		require.NoError(t, c.AddItem(pid, 3))
		require.NoError(t, c.MarkOrdered(pid, 2))
		return repo.Save(ctx, c)
	})
	require.NoError(t, err)

	stored, err := repo.GetByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, 3, stored.Items[0].Quantity)
	assert.Equal(t, 2, stored.Items[0].Ordered)
	assert.Equal(t, 1, stored.Items[0].Unordered())
}

func TestPostgres_UnknownUser(t *testing.T) {
	pool := dbtest.Pool(t)
	ctx := context.Background()
	repo := NewPostgres(pool)
	tm := db.NewTxManager(pool)

	_, err := repo.GetByUser(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	for _, id := range []string{"not-a-uuid", "6a1f0c3e-2b4d-4e8f-9c7a-5d3b1e0f2a4c"} {
		err := tm.WithinTx(ctx, func(ctx context.Context) error {
			_, err := repo.GetOrCreateForUpdate(ctx, id)
			return err
		})
		assert.ErrorIs(t, err, domain.ErrNotFound, id)
	}
}
