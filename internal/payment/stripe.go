package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

// StripeGateway implements Gateway with Stripe Checkout.
type StripeGateway struct {
	sessions      *session.Client
	webhookSecret string
	successURL    string
	cancelURL     string
}

func NewStripeGateway(cfg StripeConfig) *StripeGateway {
	return &StripeGateway{
		sessions:      &session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: cfg.SecretKey},
		webhookSecret: cfg.WebhookSecret,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
	}
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	if len(params.Lines) == 0 {
		return nil, fmt.Errorf("stripe: checkout for order %s has no lines", params.OrderID)
	}

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(params.Lines))
	for _, l := range params.Lines {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(l.Name),
		}
		if len(l.ImageURLs) > 0 {
			product.Images = stripe.StringSlice(l.ImageURLs)
		}
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(params.Currency),
				UnitAmount:  stripe.Int64(MinorUnits(l.UnitAmount)),
				ProductData: product,
			},
			Quantity: stripe.Int64(int64(l.Quantity)),
		})
	}

	sp := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:         lineItems,
		SuccessURL:        stripe.String(withSessionID(g.successURL)),
		CancelURL:         stripe.String(g.cancelURL),
		ClientReferenceID: stripe.String(params.OrderID),
	}
	if params.CustomerEmail != "" {
		sp.CustomerEmail = stripe.String(params.CustomerEmail)
	}
	sp.Context = ctx
	sp.AddMetadata("order_id", params.OrderID)
	sp.SetIdempotencyKey("checkout-" + params.OrderID)

	s, err := g.sessions.New(sp)
	if err != nil {
		return nil, wrapStripeError(err)
	}
	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

func (g *StripeGateway) ParseEvent(payload []byte, signatureHeader string) (*Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, g.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &Event{ID: event.ID, Type: string(event.Type)}
	if !strings.HasPrefix(out.Type, "checkout.session.") || event.Data == nil {
		return out, nil
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	out.SessionID = cs.ID
	out.OrderID = cs.ClientReferenceID
	out.PaymentStatus = string(cs.PaymentStatus)
	return out, nil
}

// StripeError wraps a Stripe API error with its request id.
type StripeError struct {
	Message   string
	Code      string
	RequestID string
	Err       error
}

func (e *StripeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("stripe: %s (code: %s)", e.Message, e.Code)
	}
	return "stripe: " + e.Message
}

func (e *StripeError) Unwrap() error {
	return e.Err
}

func wrapStripeError(err error) error {
	if se, ok := err.(*stripe.Error); ok {
		return &StripeError{Message: se.Msg, Code: string(se.Code), RequestID: se.RequestID, Err: err}
	}
	return &StripeError{Message: err.Error(), Err: err}
}

func withSessionID(url string) string {
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + "session_id={CHECKOUT_SESSION_ID}"
}
