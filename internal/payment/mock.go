package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MockGateway is an in-memory Gateway for tests and local runs without
// Stripe credentials. Webhooks are accepted when the signature header equals
// Secret; payloads use the Stripe event shape.
type MockGateway struct {
	CreateCheckoutSessionFunc func(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)

	Secret   string
	BaseURL  string
	Sessions map[string]CheckoutParams
	CallLog  []string

	mu sync.Mutex
}

func NewMockGateway(secret string) *MockGateway {
	return &MockGateway{
		Secret:   secret,
		BaseURL:  "https://checkout.local/pay/",
		Sessions: make(map[string]CheckoutParams),
	}
}

func (m *MockGateway) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallLog = append(m.CallLog, fmt.Sprintf("CreateCheckoutSession(%s)", params.OrderID))

	if m.CreateCheckoutSessionFunc != nil {
		return m.CreateCheckoutSessionFunc(ctx, params)
	}
	id := "cs_mock_" + uuid.NewString()
	m.Sessions[id] = params
	return &CheckoutSession{ID: id, URL: m.BaseURL + id}, nil
}

func (m *MockGateway) ParseEvent(payload []byte, signatureHeader string) (*Event, error) {
	if signatureHeader == "" || signatureHeader != m.Secret {
		return nil, ErrInvalidSignature
	}
	var raw struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID                string `json:"id"`
				ClientReferenceID string `json:"client_reference_id"`
				PaymentStatus     string `json:"payment_status"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return &Event{
		ID:            raw.ID,
		Type:          raw.Type,
		SessionID:     raw.Data.Object.ID,
		OrderID:       raw.Data.Object.ClientReferenceID,
		PaymentStatus: raw.Data.Object.PaymentStatus,
	}, nil
}

// CompletedEventPayload builds a paid checkout.session.completed body for
// sessionID.
func CompletedEventPayload(eventID, sessionID string) []byte {
	return CompletedEventPayloadWithStatus(eventID, sessionID, PaymentStatusPaid)
}

// CompletedEventPayloadWithStatus is CompletedEventPayload with an explicit
// payment_status, as sent for delayed payment methods.
func CompletedEventPayloadWithStatus(eventID, sessionID, paymentStatus string) []byte {
	body, _ := json.Marshal(map[string]any{
		"id":     eventID,
		"object": "event",
		"type":   EventCheckoutCompleted,
		"data": map[string]any{
			"object": map[string]any{
				"id":             sessionID,
				"object":         "checkout.session",
				"payment_status": paymentStatus,
			},
		},
	})
	return body
}
