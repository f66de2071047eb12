package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPMiddlewareUsesRoutePattern(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := New()

	router := gin.New()
	router.Use(reg.HTTP.Middleware())
	router.GET("/orders/:orderId", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/"+id, nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(reg.HTTP.requestsTotal.WithLabelValues("GET", "/orders/:orderId", "204")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.HTTP.requestsTotal.WithLabelValues("GET", "unmatched", "404")))
	assert.Zero(t, testutil.ToFloat64(reg.HTTP.requestsInFlight))
}

func TestNewIsolatedRegistries(t *testing.T) {
	a, b := New(), New()
	a.Business.OrdersCreated.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Business.OrdersCreated))
	assert.Zero(t, testutil.ToFloat64(b.Business.OrdersCreated))
}

func TestBusinessHelpersNilSafe(t *testing.T) {
	var b *Business
	assert.NotPanics(t, func() {
		b.CartAdd("ok")
		b.OrderPaid("paid")
		b.CacheLookup("product", true)
		b.OutboxBacklog(3)
	})
}

func TestBusinessCartAddCountsRejections(t *testing.T) {
	reg := New()
	reg.Business.CartAdd("ok")
	reg.Business.CartAdd("insufficient_inventory")

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.Business.InventoryRejected))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.Business.CartItemsAdded.WithLabelValues("ok")))
}
