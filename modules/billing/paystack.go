package billing

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// PaystackProvider verifies and normalizes Paystack webhook events.
// Paystack signs the raw request body with HMAC-SHA512 keyed by the account
// secret and sends the hex digest in the X-Paystack-Signature header.
type PaystackProvider struct {
	secret []byte
}

// NewPaystackProvider creates a Paystack webhook provider.
func NewPaystackProvider(secret string) (*PaystackProvider, error) {
	if secret == "" {
		return nil, fmt.Errorf("paystack: %w", ErrMissingWebhookSecret)
	}
	return &PaystackProvider{secret: []byte(secret)}, nil
}

func (p *PaystackProvider) Name() Provider {
	return ProviderPaystack
}

// Sign computes the hex HMAC-SHA512 digest Paystack would send for payload.
// Exposed for tests and webhook replay tooling.
func (p *PaystackProvider) Sign(payload []byte) string {
	mac := hmac.New(sha512.New, p.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

type paystackPayload struct {
	Event string `json:"event"`
	Data  struct {
		ID               json.Number `json:"id"`
		Reference        string      `json:"reference"`
		Status           string      `json:"status"`
		SubscriptionCode string      `json:"subscription_code"`
		Customer         struct {
			CustomerCode string `json:"customer_code"`
		} `json:"customer"`
		Plan struct {
			PlanCode string `json:"plan_code"`
		} `json:"plan"`
	} `json:"data"`
}

func (p *PaystackProvider) VerifyAndParse(payload []byte, signatureHeader string) (*ProviderEvent, error) {
	if signatureHeader == "" {
		return nil, fmt.Errorf("%w: missing signature header", ErrInvalidSignature)
	}

	expected, err := hex.DecodeString(signatureHeader)
	if err != nil {
		return nil, fmt.Errorf("%w: signature is not valid hex", ErrInvalidSignature)
	}

	mac := hmac.New(sha512.New, p.secret)
	mac.Write(payload)
	if !hmac.Equal(mac.Sum(nil), expected) {
		return nil, ErrInvalidSignature
	}

	var body paystackPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, errors.Join(ErrMalformedPayload, err)
	}
	if body.Event == "" {
		return nil, fmt.Errorf("%w: missing event name", ErrMalformedPayload)
	}

	out := &ProviderEvent{
		ID:          paystackEventID(body),
		Provider:    ProviderPaystack,
		Type:        mapPaystackEventType(body.Event),
		NativeType:  body.Event,
		CustomerRef: body.Data.Customer.CustomerCode,
		RawStatus:   body.Data.Status,
		PlanCode:    body.Data.Plan.PlanCode,
	}

	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err == nil {
		out.Raw = raw
	}

	return out, nil
}

// paystackEventID synthesizes a dedup key: Paystack has no top-level event
// id, but transaction references are unique per charge and subscription
// codes are stable, so combining them with the event name gives a stable
// identity across redeliveries of the same event.
func paystackEventID(body paystackPayload) string {
	ref := body.Data.Reference
	if ref == "" {
		ref = body.Data.SubscriptionCode
	}
	if ref == "" {
		ref = body.Data.ID.String()
	}
	return fmt.Sprintf("%s:%s", body.Event, ref)
}

func mapPaystackEventType(native string) EventType {
	switch native {
	case "charge.success":
		return EventPaymentSucceeded
	case "invoice.payment_failed":
		return EventPaymentFailed
	case "subscription.not_renew":
		return EventSubscriptionUpdated
	case "subscription.disable":
		return EventSubscriptionDeleted
	default:
		return EventIgnored
	}
}
