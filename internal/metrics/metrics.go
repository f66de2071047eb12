// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "storefront"

// HTTP holds request-level collectors.
type HTTP struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge
}

// Business holds domain counters shared by services and workers.
type Business struct {
	CartItemsAdded        *prometheus.CounterVec
	InventoryRejected     prometheus.Counter
	OrdersCreated         prometheus.Counter
	OrderValue            prometheus.Histogram
	OrdersPaid            *prometheus.CounterVec
	OrdersCancelled       prometheus.Counter
	OrderStatusChanges    *prometheus.CounterVec
	WebhooksReceived      *prometheus.CounterVec
	OutboxPublished       *prometheus.CounterVec
	OutboxPending         prometheus.Gauge
	CacheLookups          *prometheus.CounterVec
	CheckoutSessionErrors prometheus.Counter
}

// Registry bundles both collector sets behind one registerer.
type Registry struct {
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
	HTTP       *HTTP
	Business   *Business
}

// New registers all collectors on a fresh registry, so tests can build as
// many as they like.
func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Registry{
		Registerer: reg,
		Gatherer:   reg,
		HTTP: &HTTP{
			requestsTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			}, []string{"method", "route", "status"}),
			requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			}, []string{"method", "route", "status"}),
			requestsInFlight: f.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			}),
		},
		Business: &Business{
			CartItemsAdded: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cart_items_added_total",
				Help:      "Add-to-cart attempts by result",
			}, []string{"result"}),
			InventoryRejected: f.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "inventory_rejections_total",
				Help:      "Add-to-cart requests rejected for insufficient inventory",
			}),
			OrdersCreated: f.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_created_total",
				Help:      "Orders created from carts",
			}),
			OrderValue: f.NewHistogram(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "order_value",
				Help:      "Order total price in major currency units",
				Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 5000},
			}),
			OrdersPaid: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_paid_total",
				Help:      "Payment notifications by outcome",
			}, []string{"outcome"}),
			OrdersCancelled: f.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_cancelled_total",
				Help:      "Orders cancelled",
			}),
			OrderStatusChanges: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "order_status_changes_total",
				Help:      "Explicit order status updates by target status",
			}, []string{"status"}),
			WebhooksReceived: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhooks_received_total",
				Help:      "Payment webhooks received by event type and result",
			}, []string{"event_type", "result"}),
			OutboxPublished: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outbox_publish_attempts_total",
				Help:      "Outbox publish attempts by result",
			}, []string{"result"}),
			OutboxPending: f.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "outbox_pending_events",
				Help:      "Unpublished outbox events seen on the last poll",
			}),
			CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Cache lookups by cache name and result",
			}, []string{"cache", "result"}),
			CheckoutSessionErrors: f.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checkout_session_errors_total",
				Help:      "Failures creating payment checkout sessions",
			}),
		},
	}
}

// Middleware records request metrics labelled by the matched route pattern.
func (h *HTTP) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		h.requestsInFlight.Inc()
		defer h.requestsInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		h.requestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
		h.requestDuration.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
	}
}
