package billing

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the canonical state of a subscription.
type Status string

const (
	StatusActive      Status = "active"
	StatusCanceling   Status = "canceling"   // cancel requested, paid through period end
	StatusDowngrading Status = "downgrading" // lower plan takes effect at period end
	StatusPastDue     Status = "past_due"
	StatusCanceled    Status = "canceled"
	StatusPaused      Status = "paused"
	StatusPending     Status = "pending"
)

// Subscription is the billing state for a single user. The reconciliation
// service is the sole writer of Status and CurrentPeriodEnd.
type Subscription struct {
	UserID              uuid.UUID
	Status              Status
	Plan                PlanID
	ScheduledPlan       PlanID     // target plan for a pending downgrade, empty otherwise
	CurrentPeriodEnd    *time.Time // nil for free-tier subscriptions
	AuthorizationToken  string     // opaque reusable charge credential, empty when absent
	ProviderCustomerRef string
	SessionVersion      int64 // bumped via atomic SQL increment, never read-modify-write
	UpdatedAt           time.Time
}

// HasAuthorization reports whether a reusable charge credential is on file.
func (s *Subscription) HasAuthorization() bool {
	return s.AuthorizationToken != ""
}

// IsDue reports whether the subscription's paid period has elapsed.
func (s *Subscription) IsDue(now time.Time) bool {
	if s.CurrentPeriodEnd == nil {
		return false
	}
	return !s.CurrentPeriodEnd.After(now)
}

// WebhookEvent is the audit/dedup record for an admitted provider event.
// (EventID, Provider) is globally unique; rows are append-only and reclaimed
// after the retention window.
type WebhookEvent struct {
	EventID     string
	Provider    Provider
	EventType   string
	ProcessedAt time.Time
}

// NotificationKind identifies a user-facing billing notification.
type NotificationKind string

const (
	NotifyRenewed       NotificationKind = "subscription_renewed"
	NotifyPaymentFailed NotificationKind = "payment_failed"
	NotifyDowngraded    NotificationKind = "subscription_downgraded"
	NotifyCanceled      NotificationKind = "subscription_canceled"
)
