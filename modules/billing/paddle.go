package billing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// PaddleProvider verifies and normalizes Paddle webhook events using the
// SDK's verifier, which checks the ts/h1 signature scheme from the
// Paddle-Signature header.
type PaddleProvider struct {
	verifier *paddle.WebhookVerifier
}

// NewPaddleProvider creates a Paddle webhook provider.
func NewPaddleProvider(webhookSecret string) (*PaddleProvider, error) {
	if webhookSecret == "" {
		return nil, fmt.Errorf("paddle: %w", ErrMissingWebhookSecret)
	}
	return &PaddleProvider{verifier: paddle.NewWebhookVerifier(webhookSecret)}, nil
}

func (p *PaddleProvider) Name() Provider {
	return ProviderPaddle
}

type paddlePayload struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Data      struct {
		ID         string `json:"id"`
		Status     string `json:"status"`
		CustomerID string `json:"customer_id"`
		Items      []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"items"`
	} `json:"data"`
}

func (p *PaddleProvider) VerifyAndParse(payload []byte, signatureHeader string) (*ProviderEvent, error) {
	// The SDK verifier consumes an *http.Request, so rebuild one around
	// the raw body and signature header.
	req, err := http.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Join(ErrInvalidSignature, err)
	}
	req.Header.Set("Paddle-Signature", signatureHeader)

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(ErrInvalidSignature, err)
	}
	if !valid {
		return nil, ErrInvalidSignature
	}

	var body paddlePayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, errors.Join(ErrMalformedPayload, err)
	}
	if body.EventID == "" || body.EventType == "" {
		return nil, fmt.Errorf("%w: missing event id or type", ErrMalformedPayload)
	}

	out := &ProviderEvent{
		ID:          body.EventID,
		Provider:    ProviderPaddle,
		Type:        mapPaddleEventType(body.EventType),
		NativeType:  body.EventType,
		CustomerRef: body.Data.CustomerID,
		RawStatus:   body.Data.Status,
	}
	if len(body.Data.Items) > 0 {
		out.PlanCode = body.Data.Items[0].Price.ID
	}

	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err == nil {
		out.Raw = raw
	}

	return out, nil
}

func mapPaddleEventType(native string) EventType {
	switch native {
	case "transaction.completed":
		return EventPaymentSucceeded
	case "transaction.payment_failed":
		return EventPaymentFailed
	case "subscription.updated":
		return EventSubscriptionUpdated
	case "subscription.canceled":
		return EventSubscriptionDeleted
	default:
		return EventIgnored
	}
}
