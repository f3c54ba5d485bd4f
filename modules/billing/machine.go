package billing

import (
	"fmt"
	"time"
)

// Transition logic for the subscription status machine. All functions here
// are pure: they take a subscription value and return the next state
// without touching storage or the payment gateway. Callers persist the
// result; last writer wins at the persistence layer because every
// transition derives from canonical provider-reported facts.

// ChargePlan returns the plan whose price the next renewal charge uses:
// the scheduled target during a downgrade, the current plan otherwise.
func ChargePlan(sub Subscription, catalog Catalog) Plan {
	if sub.Status == StatusDowngrading && sub.ScheduledPlan != "" {
		return catalog.Lookup(sub.ScheduledPlan)
	}
	return catalog.Lookup(sub.Plan)
}

// ApplyRenewal applies the outcome of a period-end charge attempt for an
// active or downgrading subscription. On success the period advances by one
// billing cycle (from the elapsed boundary, not from now, so late sweeps
// don't drift the anchor date). On failure the subscription enters past_due
// with the period end untouched.
func ApplyRenewal(sub Subscription, chargeSucceeded bool, now time.Time) (Subscription, error) {
	switch sub.Status {
	case StatusActive, StatusDowngrading:
	default:
		return sub, fmt.Errorf("%w: cannot renew from %q", ErrInvalidTransition, sub.Status)
	}

	if !chargeSucceeded {
		sub.Status = StatusPastDue
		sub.UpdatedAt = now
		return sub, nil
	}

	if sub.Status == StatusDowngrading && sub.ScheduledPlan != "" {
		sub.Plan = sub.ScheduledPlan
		sub.ScheduledPlan = ""
	}

	anchor := now
	if sub.CurrentPeriodEnd != nil {
		anchor = *sub.CurrentPeriodEnd
	}
	next := NextPeriodEnd(anchor)
	sub.CurrentPeriodEnd = &next
	sub.Status = StatusActive
	sub.UpdatedAt = now

	return sub, nil
}

// ApplyCancellation completes a pending cancellation at period end: the
// subscription lands on the free plan with the charge credential cleared.
// No gateway call is involved.
func ApplyCancellation(sub Subscription, now time.Time) (Subscription, error) {
	if sub.Status != StatusCanceling {
		return sub, fmt.Errorf("%w: cannot cancel from %q", ErrInvalidTransition, sub.Status)
	}

	sub.Status = StatusCanceled
	sub.Plan = PlanFree
	sub.ScheduledPlan = ""
	sub.AuthorizationToken = ""
	sub.CurrentPeriodEnd = nil
	sub.UpdatedAt = now

	return sub, nil
}

// ApplyProviderDeleted handles the provider reporting the subscription
// deleted. Valid from any state.
func ApplyProviderDeleted(sub Subscription, now time.Time) Subscription {
	sub.Status = StatusCanceled
	sub.Plan = PlanFree
	sub.ScheduledPlan = ""
	sub.AuthorizationToken = ""
	sub.CurrentPeriodEnd = nil
	sub.UpdatedAt = now

	return sub
}

// RequestCancel marks an active subscription for cancellation at period
// end. The user keeps the paid plan until then and no charge is attempted.
func RequestCancel(sub Subscription, now time.Time) (Subscription, error) {
	if sub.Status != StatusActive {
		return sub, fmt.Errorf("%w: cannot request cancel from %q", ErrInvalidTransition, sub.Status)
	}

	sub.Status = StatusCanceling
	sub.UpdatedAt = now

	return sub, nil
}

// RequestDowngrade schedules a move to a lower plan at period end. The
// target must be named explicitly; there is no implicit fallback tier.
func RequestDowngrade(sub Subscription, target PlanID, now time.Time) (Subscription, error) {
	if sub.Status != StatusActive {
		return sub, fmt.Errorf("%w: cannot request downgrade from %q", ErrInvalidTransition, sub.Status)
	}
	if target == "" {
		return sub, fmt.Errorf("%w: downgrade target plan is required", ErrInvalidTransition)
	}

	sub.Status = StatusDowngrading
	sub.ScheduledPlan = target
	sub.UpdatedAt = now

	return sub, nil
}

// CanAttemptCharge reports whether an automatic charge may be attempted.
// A past_due subscription without a stored authorization stays past_due
// until the user provides a new credential; there is nothing to charge.
func CanAttemptCharge(sub Subscription) bool {
	return sub.HasAuthorization()
}
