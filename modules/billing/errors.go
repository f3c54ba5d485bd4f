package billing

import "errors"

var (
	ErrInvalidTransition = errors.New("invalid subscription transition")

	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrUnknownProvider      = errors.New("unknown payment provider")

	ErrInvalidSignature = errors.New("webhook signature verification failed")
	ErrMalformedPayload = errors.New("malformed webhook payload")

	ErrGatewayDeclined = errors.New("payment gateway declined the charge")

	ErrMissingWebhookSecret = errors.New("webhook secret is required")
)
