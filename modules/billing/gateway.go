package billing

import "context"

// ChargeStatus is the gateway's verdict on a charge attempt.
type ChargeStatus string

const (
	ChargeSucceeded ChargeStatus = "success"
	ChargeFailed    ChargeStatus = "failed"
)

// ChargeRequest describes one recurring charge attempt. IdempotencyRef is
// synthesized per attempt so a retried request cannot double-bill.
type ChargeRequest struct {
	AuthorizationToken string
	CustomerRef        string // provider's customer reference
	Amount             int64  // minor units
	Currency           string
	IdempotencyRef     string
	Metadata           map[string]string
}

// ChargeResult is the gateway's response. A declined charge is reported
// through Status, not through an error; errors are reserved for transport
// and protocol failures.
type ChargeResult struct {
	Status ChargeStatus
	Raw    map[string]any
}

// PaymentGateway abstracts the payment provider's charge API. The actual
// HTTP integration lives outside this module; implementations wrap the
// provider SDKs.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}
