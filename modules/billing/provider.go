package billing

// Provider identifies a payment provider whose webhooks we accept.
type Provider string

const (
	ProviderStripe   Provider = "stripe"
	ProviderPaystack Provider = "paystack"
	ProviderPaddle   Provider = "paddle"
)

// EventType is the normalized billing event type. Each provider
// implementation maps its native event names onto this set.
type EventType string

const (
	EventPaymentSucceeded    EventType = "payment_succeeded"
	EventPaymentFailed       EventType = "payment_failed"
	EventSubscriptionUpdated EventType = "subscription_updated"
	EventSubscriptionDeleted EventType = "subscription_deleted"
	EventIgnored             EventType = "ignored"
)

// ProviderEvent is a verified, normalized webhook event.
type ProviderEvent struct {
	ID          string    // provider-issued event id, dedup key together with Provider
	Provider    Provider
	Type        EventType
	NativeType  string // original provider event name, for audit records and logs
	CustomerRef string // provider's customer reference, maps to Subscription.ProviderCustomerRef
	RawStatus   string // provider's raw subscription status, translated via MapProviderStatus
	PlanCode    string // provider's plan/price code, resolved against the catalog
	Raw         map[string]any
}

// WebhookProvider verifies a webhook's signature and parses its payload
// into a normalized event. Verification happens before any parsing; an
// invalid signature must fail without inspecting the body.
type WebhookProvider interface {
	Name() Provider
	VerifyAndParse(payload []byte, signatureHeader string) (*ProviderEvent, error)
}
