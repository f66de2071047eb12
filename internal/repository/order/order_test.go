package order

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/db"
	"storefront/internal/db/dbtest"
	"storefront/internal/domain"
	addressrepo "storefront/internal/repository/address"
)

func TestPostgres_CreateGetAndMarkPaid(t *testing.T) {
	pool := dbtest.Pool(t)
	ctx := context.Background()
	repo := NewPostgres(pool, nil)
	tm := db.NewTxManager(pool)

	userID := dbtest.InsertUser(t, pool, "order@example.com")
	addr, err := addressrepo.NewPostgres(pool).Create(ctx, domain.Address{UserID: userID, Line1: "1 Main St", City: "Springfield", Country: "US"})
	require.NoError(t, err)

	o := domain.NewOrder(userID, addr.ID)
	require.NoError(t, o.AddOrderItem(domain.Product{ID: dbtest.InsertProduct(t, pool, "P1", "10.00", 1), Title: "P1", Price: decimal.RequireFromString("10.00")}, 2))
	require.NoError(t, o.AddOrderItem(domain.Product{ID: dbtest.InsertProduct(t, pool, "P2", "20.00", 1), Title: "P2", Price: decimal.RequireFromString("20.00")}, 3))
	require.NoError(t, repo.Create(ctx, o))

	fetched, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, fetched.Status)
	assert.True(t, fetched.TotalPrice.Equal(decimal.RequireFromString("80.00")))
	require.Len(t, fetched.Items, 2)
	assert.Equal(t, "P1", fetched.Items[0].Snapshot.Title, "items come back in insertion order")
	assert.Equal(t, "P2", fetched.Items[1].Snapshot.Title)

	require.NoError(t, repo.AttachPaymentSession(ctx, o.ID, "cs_test_1", "https://pay.example/cs_test_1", domain.OrderStatusPending))

	err = tm.WithinTx(ctx, func(ctx context.Context) error {
		locked, err := repo.GetByPaymentSessionForUpdate(ctx, "cs_test_1")
		if err != nil {
			return err
		}
		changed, err := repo.MarkPaid(ctx, locked.ID, locked.Status, time.Now())
		assert.True(t, changed)
		return err
	})
	require.NoError(t, err)

	changed, err := repo.MarkPaid(ctx, o.ID, domain.OrderStatusPending, time.Now())
	require.NoError(t, err)
	assert.False(t, changed, "second mark is a no-op")

	paid, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, paid.Status)
	assert.NotNil(t, paid.PaidAt)

	list, err := repo.ListByUser(ctx, userID, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Items, 2)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgres_MalformedIDIsNotFound(t *testing.T) {
	pool := dbtest.Pool(t)
	ctx := context.Background()
	repo := NewPostgres(pool, nil)
	tm := db.NewTxManager(pool)
	userID := dbtest.InsertUser(t, pool, "malformed@example.com")

	_, err := repo.GetByID(ctx, "order-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, repo.UpdateStatus(ctx, "order-1", domain.OrderStatusCancelled), domain.ErrNotFound)
	orders, err := repo.ListByUser(ctx, "user-1", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, orders)

	err = tm.WithinTx(ctx, func(ctx context.Context) error {
		_, err := repo.GetForUpdate(ctx, "order-1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		// The transaction is still usable after the miss.
		_, err = repo.ListByUser(ctx, userID, 10, 0)
		return err
	})
	require.NoError(t, err)
}
