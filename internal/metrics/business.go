package metrics

import "github.com/shopspring/decimal"

// The helpers below are safe on a nil *Business so services can run
// without metrics in tests.

func (b *Business) CartAdd(result string) {
	if b == nil {
		return
	}
	b.CartItemsAdded.WithLabelValues(result).Inc()
	if result == "insufficient_inventory" {
		b.InventoryRejected.Inc()
	}
}

func (b *Business) OrderCreated(total decimal.Decimal) {
	if b == nil {
		return
	}
	b.OrdersCreated.Inc()
	b.OrderValue.Observe(total.InexactFloat64())
}

func (b *Business) OrderPaid(outcome string) {
	if b == nil {
		return
	}
	b.OrdersPaid.WithLabelValues(outcome).Inc()
}

func (b *Business) OrderCancelled() {
	if b == nil {
		return
	}
	b.OrdersCancelled.Inc()
}

func (b *Business) StatusChanged(status string) {
	if b == nil {
		return
	}
	b.OrderStatusChanges.WithLabelValues(status).Inc()
}

func (b *Business) Webhook(eventType, result string) {
	if b == nil {
		return
	}
	b.WebhooksReceived.WithLabelValues(eventType, result).Inc()
}

func (b *Business) OutboxResult(result string) {
	if b == nil {
		return
	}
	b.OutboxPublished.WithLabelValues(result).Inc()
}

func (b *Business) OutboxBacklog(n int) {
	if b == nil {
		return
	}
	b.OutboxPending.Set(float64(n))
}

func (b *Business) CacheLookup(cache string, hit bool) {
	if b == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	b.CacheLookups.WithLabelValues(cache, result).Inc()
}

func (b *Business) CheckoutFailed() {
	if b == nil {
		return
	}
	b.CheckoutSessionErrors.Inc()
}
