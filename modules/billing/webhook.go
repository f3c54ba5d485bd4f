package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// HandleWebhook processes one provider webhook delivery: verify the
// signature, then admit the event through the durable dedup gate and apply
// its effect inside a single atomic unit. Providers deliver at least once;
// admission turns that into at-most-once processing. A redelivered event is
// acknowledged as a success without re-applying its effect.
//
// Admission and the effect commit or roll back together. A crash or write
// failure mid-delivery leaves no admission record behind, so the provider's
// retry goes through the gate again instead of being swallowed as a
// duplicate. Notifications go out only after the unit commits.
func (s *Service) HandleWebhook(ctx context.Context, provider Provider, payload []byte, signatureHeader string) error {
	wp, ok := s.providers[provider]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}

	event, err := wp.VerifyAndParse(payload, signatureHeader)
	if err != nil {
		return err
	}

	if event.Type == EventIgnored {
		s.log.DebugContext(ctx, "ignoring webhook event",
			"provider", string(provider), "native_type", event.NativeType)
		return nil
	}

	now := time.Now().UTC()

	var (
		duplicate bool
		kind      NotificationKind
		notifyID  uuid.UUID
	)
	err = s.store.RunAtomic(ctx, func(subs SubscriptionStore, events EventStore) error {
		first, err := events.Admit(ctx, event.ID, provider, string(event.Type), now)
		if err != nil {
			return fmt.Errorf("failed to admit webhook event: %w", err)
		}
		if !first {
			duplicate = true
			return nil
		}

		k, id, err := s.applyEvent(ctx, subs, event, now)
		if err != nil {
			return err
		}
		kind, notifyID = k, id
		return nil
	})
	if err != nil {
		return err
	}

	if duplicate {
		s.log.InfoContext(ctx, "duplicate webhook event ignored",
			"provider", string(provider), "event_id", event.ID)
		return nil
	}

	if kind != "" {
		s.notify(ctx, notifyID, kind)
	}
	return nil
}

// applyEvent dispatches one admitted event against the subscription it
// targets. All writes go through the handed-in store so they stay inside
// the caller's atomic unit; the returned notification kind is delivered by
// the caller after the unit commits.
func (s *Service) applyEvent(ctx context.Context, subs SubscriptionStore, event *ProviderEvent, now time.Time) (NotificationKind, uuid.UUID, error) {
	sub, err := subs.GetByCustomerRef(ctx, event.CustomerRef)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			// No local subscription for this customer; a retry cannot fix
			// that, so acknowledge rather than bounce the delivery forever.
			s.log.WarnContext(ctx, "webhook for unknown customer",
				"provider", string(event.Provider), "event_id", event.ID,
				"customer_ref", event.CustomerRef)
			return "", uuid.Nil, nil
		}
		return "", uuid.Nil, fmt.Errorf("failed to load subscription: %w", err)
	}

	var kind NotificationKind
	switch event.Type {
	case EventPaymentSucceeded:
		kind, err = s.applyPaymentSucceeded(ctx, subs, sub, now)
	case EventPaymentFailed:
		kind, err = s.applyPaymentFailed(ctx, subs, sub, now)
	case EventSubscriptionUpdated:
		kind, err = s.applySubscriptionUpdated(ctx, subs, sub, event, now)
	case EventSubscriptionDeleted:
		kind, err = s.applySubscriptionDeleted(ctx, subs, sub, now)
	default:
		s.log.WarnContext(ctx, "unhandled webhook event type",
			"provider", string(event.Provider), "type", string(event.Type))
		return "", uuid.Nil, nil
	}
	if err != nil {
		return "", uuid.Nil, err
	}
	return kind, sub.UserID, nil
}

// applyPaymentSucceeded advances the billing period on a provider-confirmed
// payment. It also recovers past_due subscriptions: a successful provider
// charge is proof the credential works again.
func (s *Service) applyPaymentSucceeded(ctx context.Context, subs SubscriptionStore, sub *Subscription, now time.Time) (NotificationKind, error) {
	wasDowngrading := sub.Status == StatusDowngrading

	var next Subscription
	switch sub.Status {
	case StatusActive, StatusDowngrading:
		n, err := ApplyRenewal(*sub, true, now)
		if err != nil {
			return "", err
		}
		next = n
	case StatusPastDue:
		next = *sub
		next.Status = StatusActive
		anchor := now
		if next.CurrentPeriodEnd != nil {
			anchor = *next.CurrentPeriodEnd
		}
		end := NextPeriodEnd(anchor)
		next.CurrentPeriodEnd = &end
		next.UpdatedAt = now
	default:
		s.log.InfoContext(ctx, "payment confirmation for terminal subscription ignored",
			"user_id", sub.UserID, "status", string(sub.Status))
		return "", nil
	}

	if err := subs.Save(ctx, &next); err != nil {
		return "", fmt.Errorf("failed to persist renewal: %w", err)
	}

	if wasDowngrading {
		if err := subs.BumpSessionVersion(ctx, sub.UserID); err != nil {
			return "", fmt.Errorf("failed to bump session version: %w", err)
		}
		return NotifyDowngraded, nil
	}

	return NotifyRenewed, nil
}

func (s *Service) applyPaymentFailed(ctx context.Context, subs SubscriptionStore, sub *Subscription, now time.Time) (NotificationKind, error) {
	switch sub.Status {
	case StatusActive, StatusDowngrading:
	case StatusPastDue:
		return "", nil // already delinquent
	default:
		s.log.InfoContext(ctx, "payment failure for terminal subscription ignored",
			"user_id", sub.UserID, "status", string(sub.Status))
		return "", nil
	}

	next, err := ApplyRenewal(*sub, false, now)
	if err != nil {
		return "", err
	}
	if err := subs.Save(ctx, &next); err != nil {
		return "", fmt.Errorf("failed to persist payment failure: %w", err)
	}

	return NotifyPaymentFailed, nil
}

// applySubscriptionUpdated reconciles the local row with the provider's
// reported status and plan. The provider is canonical; last writer wins.
// A raw status with no local mapping is logged and the update skipped,
// since guessing a lifecycle state could flip access the wrong way.
func (s *Service) applySubscriptionUpdated(ctx context.Context, subs SubscriptionStore, sub *Subscription, event *ProviderEvent, now time.Time) (NotificationKind, error) {
	status, mapped := MapProviderStatus(event.RawStatus)
	if !mapped {
		s.log.WarnContext(ctx, "unmapped provider subscription status",
			"provider", string(event.Provider), "raw_status", event.RawStatus)
		return "", nil
	}

	if status == StatusCanceled {
		return s.applySubscriptionDeleted(ctx, subs, sub, now)
	}

	next := *sub
	next.Status = status
	next.UpdatedAt = now

	planChanged := false
	if event.PlanCode != "" {
		if id := PlanID(event.PlanCode); s.catalog.IsPaid(id) && id != sub.Plan {
			next.Plan = id
			next.ScheduledPlan = ""
			planChanged = true
		}
	}

	if err := subs.Save(ctx, &next); err != nil {
		return "", fmt.Errorf("failed to persist subscription update: %w", err)
	}
	if planChanged {
		if err := subs.BumpSessionVersion(ctx, sub.UserID); err != nil {
			return "", fmt.Errorf("failed to bump session version: %w", err)
		}
	}

	return "", nil
}

func (s *Service) applySubscriptionDeleted(ctx context.Context, subs SubscriptionStore, sub *Subscription, now time.Time) (NotificationKind, error) {
	if sub.Status == StatusCanceled {
		return "", nil
	}

	next := ApplyProviderDeleted(*sub, now)
	if err := subs.Save(ctx, &next); err != nil {
		return "", fmt.Errorf("failed to persist subscription deletion: %w", err)
	}
	if err := subs.BumpSessionVersion(ctx, sub.UserID); err != nil {
		return "", fmt.Errorf("failed to bump session version: %w", err)
	}

	return NotifyCanceled, nil
}
