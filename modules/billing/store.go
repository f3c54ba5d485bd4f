package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SubscriptionStore persists subscription rows. Save is last-writer-wins:
// transitions derive from canonical provider-reported facts, so conditional
// updates are unnecessary (the one exception, SessionVersion, has its own
// atomic operation).
type SubscriptionStore interface {
	// Get retrieves a subscription by user id.
	// Returns ErrSubscriptionNotFound if none exists.
	Get(ctx context.Context, userID uuid.UUID) (*Subscription, error)

	// GetByCustomerRef retrieves a subscription by the provider's customer
	// reference. Returns ErrSubscriptionNotFound if none exists.
	GetByCustomerRef(ctx context.Context, ref string) (*Subscription, error)

	// Save creates or updates a subscription keyed by UserID.
	Save(ctx context.Context, sub *Subscription) error

	// ListDue returns up to limit subscriptions on a paid plan whose
	// current period end is at or before now.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*Subscription, error)

	// BumpSessionVersion increments the session version with an atomic
	// storage-level increment, invalidating issued credentials without a
	// lost-update window.
	BumpSessionVersion(ctx context.Context, userID uuid.UUID) error
}

// EventStore is the durable admission gate for externally-triggered events.
type EventStore interface {
	// Admit records the (eventID, provider) pair with an atomic
	// insert-if-absent. Returns true iff this is the first admission.
	Admit(ctx context.Context, eventID string, provider Provider, eventType string, at time.Time) (bool, error)

	// DeleteOlderThan reclaims admission records processed before cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Storage bundles the persistence ports with an atomic execution
// primitive. RunAtomic is what couples event admission with the event's
// effect: either both commit or neither does, so a crash or write failure
// mid-webhook can never leave an admission record without its applied
// effect (which would turn the provider's retry into a silent no-op).
type Storage interface {
	SubscriptionStore
	EventStore

	// RunAtomic executes fn against stores whose writes commit or roll
	// back together. fn must use the stores it is handed, not the outer
	// Storage, for every write that belongs to the unit.
	RunAtomic(ctx context.Context, fn func(subs SubscriptionStore, events EventStore) error) error
}

// Notifier delivers fire-and-forget billing notifications. Failures are
// logged by callers and never abort billing work.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, kind NotificationKind) error
}
