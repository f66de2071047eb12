package httpserver

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
	"storefront/internal/payment"
)

const maxWebhookBody = 64 << 10

// webhook verifies a payment provider notification against the raw body.
// Only a paid checkout.session.completed changes state; every verified
// delivery that needs no retry is acknowledged with 200.
func (h *handlers) webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		badRequest(c, "unreadable body")
		return
	}
	m := h.businessMetrics()

	event, err := h.deps.Payments.ParseEvent(body, c.GetHeader("Stripe-Signature"))
	if err != nil {
		m.Webhook("unknown", "rejected")
		if errors.Is(err, payment.ErrInvalidSignature) {
			badRequest(c, "invalid signature")
			return
		}
		badRequest(c, "malformed event")
		return
	}

	log := h.logger.WithField("event_id", event.ID).WithField("event_type", event.Type)
	if event.Type != payment.EventCheckoutCompleted {
		m.Webhook(event.Type, "ignored")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	if event.PaymentStatus != payment.PaymentStatusPaid {
		m.Webhook(event.Type, "unpaid")
		log.WithField("payment_status", event.PaymentStatus).Info("checkout completed without payment")
		c.JSON(http.StatusOK, gin.H{"received": true, "applied": false})
		return
	}

	applied, err := h.deps.OrderSvc.MarkOrderAsPaid(c.Request.Context(), event.SessionID)
	switch {
	case domain.IsKind(err, domain.KindInvalidOperation):
		m.Webhook(event.Type, "rejected")
		log.WithError(err).Warn("payment not applied")
		c.JSON(http.StatusOK, gin.H{"received": true, "applied": false})
		return
	case err != nil:
		m.Webhook(event.Type, "error")
		writeError(c, h.logger, err)
		return
	}

	result := "duplicate"
	if applied {
		result = "applied"
	}
	m.Webhook(event.Type, result)
	c.JSON(http.StatusOK, gin.H{"received": true, "applied": applied})
}
