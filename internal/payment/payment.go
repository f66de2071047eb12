// Package payment talks to the hosted checkout provider.
package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// EventCheckoutCompleted is the only event type that marks an order paid.
const EventCheckoutCompleted = "checkout.session.completed"

// PaymentStatusPaid is the checkout session payment_status once funds are
// captured. Delayed methods complete the session as "unpaid" first.
const PaymentStatusPaid = "paid"

var (
	// ErrInvalidSignature is returned when a webhook payload fails
	// verification against the shared secret.
	ErrInvalidSignature = errors.New("payment: invalid webhook signature")
	// ErrMalformedEvent is returned for verified payloads that cannot be
	// decoded.
	ErrMalformedEvent = errors.New("payment: malformed webhook event")
)

// Gateway creates hosted checkout sessions and verifies their webhooks.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
	ParseEvent(payload []byte, signatureHeader string) (*Event, error)
}

type CheckoutParams struct {
	OrderID       string
	CustomerEmail string
	Currency      string
	Lines         []CheckoutLine
}

type CheckoutLine struct {
	Name       string
	UnitAmount decimal.Decimal
	Quantity   int
	ImageURLs  []string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// Event is a verified webhook notification. SessionID is set for
// checkout.session.* events.
type Event struct {
	ID            string
	Type          string
	SessionID     string
	OrderID       string
	PaymentStatus string
}

// MinorUnits converts a decimal amount into the smallest currency unit.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
