package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
)

// StripeGateway charges stored payment methods through Stripe payment
// intents. Charges run off-session against the saved authorization; the
// idempotency reference is forwarded as Stripe's idempotency key so a
// retried request within a sweep run cannot double-bill.
type StripeGateway struct{}

// NewStripeGateway creates the gateway. The secret key is installed
// process-wide, which is how the Stripe SDK expects to be configured.
func NewStripeGateway(secretKey string) (*StripeGateway, error) {
	if secretKey == "" {
		return nil, errors.New("stripe secret key is required")
	}
	stripe.Key = secretKey
	return &StripeGateway{}, nil
}

func (g *StripeGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.Amount),
		Currency:      stripe.String(strings.ToLower(req.Currency)),
		Customer:      stripe.String(req.CustomerRef),
		PaymentMethod: stripe.String(req.AuthorizationToken),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
	}
	params.Context = ctx
	if req.IdempotencyRef != "" {
		params.SetIdempotencyKey(req.IdempotencyRef)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		// Card declines come back as errors from a confirmed intent; they
		// are charge outcomes, not transport failures.
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			return &ChargeResult{
				Status: ChargeFailed,
				Raw:    map[string]any{"decline_code": stripeErr.DeclineCode, "code": string(stripeErr.Code)},
			}, nil
		}
		return nil, fmt.Errorf("stripe charge failed: %w", err)
	}

	result := &ChargeResult{
		Status: ChargeFailed,
		Raw:    map[string]any{"payment_intent": pi.ID, "status": string(pi.Status)},
	}
	if pi.Status == stripe.PaymentIntentStatusSucceeded {
		result.Status = ChargeSucceeded
	}
	return result, nil
}
