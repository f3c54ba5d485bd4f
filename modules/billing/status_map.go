package billing

// providerStatusMap translates provider-specific raw subscription statuses
// into the canonical vocabulary before they reach transition logic.
// Stripe and Paddle vocabularies overlap; the table holds the union.
var providerStatusMap = map[string]Status{
	"active":     StatusActive,
	"trialing":   StatusActive,
	"past_due":   StatusPastDue,
	"unpaid":     StatusPastDue,
	"incomplete": StatusPending,
	"paused":     StatusPaused,
	"canceled":   StatusCanceled,
	"cancelled":  StatusCanceled,
	"deleted":    StatusCanceled,
	"non-renew":  StatusCanceling, // paystack's cancel-at-period-end
}

// MapProviderStatus translates a provider raw status into the canonical
// set. Unknown raw statuses pass through unchanged with ok=false so the
// caller can log them as unmapped.
func MapProviderStatus(raw string) (Status, bool) {
	if mapped, ok := providerStatusMap[raw]; ok {
		return mapped, true
	}
	return Status(raw), false
}
