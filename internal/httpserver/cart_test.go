package httpserver

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
)

func addBody(productID string, qty int) string {
	return fmt.Sprintf(`{"productId":%q,"quantity":%d}`, productID, qty)
}

func TestAddToCartReservesInventory(t *testing.T) {
	env := newTestEnv(t)
	pid := env.store.AddProduct("Desk Lamp", "10.00", 5)

	rec := env.do(http.MethodPost, "/carts/users/alice", aliceToken, addBody(pid, 5))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cart := decode[domain.Cart](t, rec)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.Equal(t, 0, env.store.Product(pid).Inventory)

	rec = env.do(http.MethodPost, "/carts/users/alice", aliceToken, addBody(pid, 1))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, domain.KindInvalidOperation, errorCode(t, rec))
	assert.Equal(t, 0, env.store.Product(pid).Inventory)

	stored, ok := env.store.Cart("alice")
	require.True(t, ok)
	assert.Equal(t, 5, stored.Items[0].Quantity)
}

func TestAddToCartRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	pid := env.store.AddProduct("Desk Lamp", "10.00", 5)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing product", `{"quantity":1}`, http.StatusBadRequest},
		{"zero quantity", addBody(pid, 0), http.StatusBadRequest},
		{"negative quantity", addBody(pid, -2), http.StatusBadRequest},
		{"unknown product", addBody("nope", 1), http.StatusNotFound},
		{"not json", `quantity=1`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/carts/users/alice", aliceToken, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
	assert.Equal(t, 5, env.store.Product(pid).Inventory)
}

func TestCartOwnership(t *testing.T) {
	env := newTestEnv(t)
	pid := env.store.AddProduct("Desk Lamp", "10.00", 5)

	rec := env.do(http.MethodPost, "/carts/users/alice", bobToken, addBody(pid, 1))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 5, env.store.Product(pid).Inventory)

	rec = env.do(http.MethodGet, "/carts/users/alice", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPost, "/carts/users/alice", adminToken, addBody(pid, 1))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/carts/users/alice", aliceToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[domain.Cart](t, rec).Items, 1)
}

func TestGetMissingCart(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/carts/users/alice", aliceToken, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, domain.KindNotFound, errorCode(t, rec))
}

func TestRemoveAndClearCart(t *testing.T) {
	env := newTestEnv(t)
	lamp := env.store.AddProduct("Desk Lamp", "10.00", 5)
	mug := env.store.AddProduct("Mug", "4.50", 5)

	env.do(http.MethodPost, "/carts/users/alice", aliceToken, addBody(lamp, 3))
	rec := env.do(http.MethodPost, "/carts/users/alice", aliceToken, addBody(mug, 2))
	require.Equal(t, http.StatusOK, rec.Code)

	var lampLine string
	for _, it := range decode[domain.Cart](t, rec).Items {
		if it.ProductID == lamp {
			lampLine = it.ID
		}
	}
	require.NotEmpty(t, lampLine)

	rec = env.do(http.MethodDelete, "/carts/users/alice/items/"+lampLine+"?quantity=1", aliceToken, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	for _, it := range decode[domain.Cart](t, rec).Items {
		if it.ID == lampLine {
			assert.Equal(t, 2, it.Quantity)
		}
	}

	rec = env.do(http.MethodDelete, "/carts/users/alice/items/"+lampLine+"?quantity=abc", aliceToken, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodDelete, "/carts/users/alice/items/"+lampLine, aliceToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[domain.Cart](t, rec).Items, 1)

	rec = env.do(http.MethodPost, "/carts/users/alice/clear", aliceToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[domain.Cart](t, rec).Items)
}
