package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func product(id, price string) Product {
	return Product{
		ID:          id,
		Title:       "Product " + id,
		Description: "desc " + id,
		Price:       decimal.RequireFromString(price),
		Inventory:   10,
		ImageURLs:   []string{"https://img.example/" + id + ".png"},
	}
}

func sumLines(o *Order) decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

func TestNewOrderStartsProcessing(t *testing.T) {
	o := NewOrder("user-1", "addr-1")
	assert.Equal(t, OrderStatusProcessing, o.Status)
	assert.True(t, o.TotalPrice.IsZero())
	assert.NotEmpty(t, o.ID)
}

func TestAddOrderItemTotals(t *testing.T) {
	o := NewOrder("user-1", "addr-1")

	require.NoError(t, o.AddOrderItem(product("p1", "10.00"), 2))
	assert.True(t, o.TotalPrice.Equal(sumLines(o)))

	require.NoError(t, o.AddOrderItem(product("p2", "20.00"), 3))
	assert.True(t, o.TotalPrice.Equal(decimal.RequireFromString("80.00")), o.TotalPrice.String())
	assert.True(t, o.TotalPrice.Equal(sumLines(o)))
	assert.Equal(t, 5, o.ItemCount())
}

func TestAddOrderItemMergesAndKeepsSnapshotPrice(t *testing.T) {
	o := NewOrder("user-1", "addr-1")
	p := product("p1", "10.00")
	require.NoError(t, o.AddOrderItem(p, 1))

	p.Price = decimal.RequireFromString("99.00")
	p.Title = "Renamed"
	require.NoError(t, o.AddOrderItem(p, 2))

	require.Len(t, o.Items, 1)
	line := o.Items[0]
	assert.Equal(t, 3, line.Quantity)
	assert.True(t, line.Price.Equal(decimal.RequireFromString("10.00")))
	assert.Equal(t, "Product p1", line.Snapshot.Title)
	assert.Equal(t, o.ID, line.OrderID)
	assert.True(t, o.TotalPrice.Equal(decimal.RequireFromString("30.00")))
}

func TestSnapshotIsDetachedFromProduct(t *testing.T) {
	p := product("p1", "5.00")
	snap := SnapshotOf(p)
	p.ImageURLs[0] = "changed"
	assert.Equal(t, "https://img.example/p1.png", snap.ImageURLs[0])
}

func TestAddOrderItemRejectsInvalid(t *testing.T) {
	o := NewOrder("user-1", "addr-1")
	assert.True(t, IsKind(o.AddOrderItem(product("p1", "1.00"), 0), KindInvalidInput))
	assert.True(t, IsKind(o.AddOrderItem(product("", "1.00"), 1), KindInvalidInput))
	assert.True(t, IsKind(o.AddOrderItem(product("p1", "0"), 1), KindInvalidOperation))
	assert.Empty(t, o.Items)
}

func TestReplaceItemsDerivesTotal(t *testing.T) {
	o := &Order{}
	o.ReplaceItems([]OrderItem{
		{Quantity: 2, Price: decimal.RequireFromString("1.25")},
		{Quantity: 1, Price: decimal.RequireFromString("0.50")},
	})
	assert.True(t, o.TotalPrice.Equal(decimal.RequireFromString("3.00")))
}

func TestOrderStatus(t *testing.T) {
	cases := []struct {
		status    OrderStatus
		canCancel bool
	}{
		{OrderStatusProcessing, true},
		{OrderStatusPending, true},
		{OrderStatusCancelled, true},
		{OrderStatusCompleted, false},
		{OrderStatusShipped, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.canCancel, tc.status.CanCancel(), tc.status)
	}

	st, err := ParseOrderStatus("Shipped")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusShipped, st)

	_, err = ParseOrderStatus("shipped")
	assert.True(t, IsKind(err, KindInvalidInput))
}
