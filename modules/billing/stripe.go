package billing

import (
	"encoding/json"
	"errors"
	"fmt"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeProvider verifies and normalizes Stripe webhook events using the
// official SDK's signature validation (HMAC-SHA256 over a timestamped
// payload, constant-time comparison, replay window).
type StripeProvider struct {
	webhookSecret string
}

// NewStripeProvider creates a Stripe webhook provider.
func NewStripeProvider(webhookSecret string) (*StripeProvider, error) {
	if webhookSecret == "" {
		return nil, fmt.Errorf("stripe: %w", ErrMissingWebhookSecret)
	}
	return &StripeProvider{webhookSecret: webhookSecret}, nil
}

func (p *StripeProvider) Name() Provider {
	return ProviderStripe
}

// stripeInvoice carries the invoice fields renewal handling needs.
type stripeInvoice struct {
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
}

// stripeSubscription carries the subscription fields status re-mapping needs.
type stripeSubscription struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
	Status   string `json:"status"`
	Items    struct {
		Data []struct {
			Price struct {
				ID        string `json:"id"`
				LookupKey string `json:"lookup_key"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

func (p *StripeProvider) VerifyAndParse(payload []byte, signatureHeader string) (*ProviderEvent, error) {
	// Signature first; the body is untrusted until this passes.
	if err := webhook.ValidatePayload(payload, signatureHeader, p.webhookSecret); err != nil {
		return nil, errors.Join(ErrInvalidSignature, err)
	}

	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, errors.Join(ErrMalformedPayload, err)
	}
	if event.ID == "" || event.Data == nil {
		return nil, fmt.Errorf("%w: missing event id or data", ErrMalformedPayload)
	}

	out := &ProviderEvent{
		ID:         event.ID,
		Provider:   ProviderStripe,
		Type:       mapStripeEventType(string(event.Type)),
		NativeType: string(event.Type),
	}
	if len(event.Data.Raw) > 0 {
		var raw map[string]any
		if err := json.Unmarshal(event.Data.Raw, &raw); err == nil {
			out.Raw = raw
		}
	}

	switch out.Type {
	case EventPaymentSucceeded, EventPaymentFailed:
		var inv stripeInvoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, errors.Join(ErrMalformedPayload, err)
		}
		out.CustomerRef = inv.Customer

	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub stripeSubscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, errors.Join(ErrMalformedPayload, err)
		}
		out.CustomerRef = sub.Customer
		out.RawStatus = sub.Status
		if len(sub.Items.Data) > 0 {
			price := sub.Items.Data[0].Price
			if price.LookupKey != "" {
				out.PlanCode = price.LookupKey
			} else {
				out.PlanCode = price.ID
			}
		}
	}

	return out, nil
}

func mapStripeEventType(native string) EventType {
	switch native {
	case "invoice.payment_succeeded":
		return EventPaymentSucceeded
	case "invoice.payment_failed":
		return EventPaymentFailed
	case "customer.subscription.updated":
		return EventSubscriptionUpdated
	case "customer.subscription.deleted":
		return EventSubscriptionDeleted
	default:
		return EventIgnored
	}
}
