package billing_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/modules/billing"
)

func paidSubscription(status billing.Status, plan billing.PlanID, periodEnd time.Time) billing.Subscription {
	return billing.Subscription{
		UserID:              uuid.New(),
		Status:              status,
		Plan:                plan,
		CurrentPeriodEnd:    &periodEnd,
		AuthorizationToken:  "auth_tok_123",
		ProviderCustomerRef: "cus_123",
	}
}

func TestApplyRenewal(t *testing.T) {
	t.Parallel()

	periodEnd := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := periodEnd.Add(3 * time.Hour) // sweep runs a little late

	t.Run("success advances period from the elapsed boundary", func(t *testing.T) {
		t.Parallel()

		sub := paidSubscription(billing.StatusActive, billing.PlanPro, periodEnd)
		next, err := billing.ApplyRenewal(sub, true, now)
		require.NoError(t, err)

		assert.Equal(t, billing.StatusActive, next.Status)
		assert.Equal(t, billing.PlanPro, next.Plan)
		// Anchored to the old boundary, not to the sweep time.
		require.NotNil(t, next.CurrentPeriodEnd)
		assert.Equal(t, periodEnd.AddDate(0, 1, 0), *next.CurrentPeriodEnd)
	})

	t.Run("success completes a scheduled downgrade", func(t *testing.T) {
		t.Parallel()

		sub := paidSubscription(billing.StatusDowngrading, billing.PlanPlus, periodEnd)
		sub.ScheduledPlan = billing.PlanPro

		next, err := billing.ApplyRenewal(sub, true, now)
		require.NoError(t, err)

		assert.Equal(t, billing.StatusActive, next.Status)
		assert.Equal(t, billing.PlanPro, next.Plan)
		assert.Empty(t, next.ScheduledPlan)
	})

	t.Run("failure parks the subscription in past_due", func(t *testing.T) {
		t.Parallel()

		sub := paidSubscription(billing.StatusActive, billing.PlanPro, periodEnd)
		next, err := billing.ApplyRenewal(sub, false, now)
		require.NoError(t, err)

		assert.Equal(t, billing.StatusPastDue, next.Status)
		assert.Equal(t, billing.PlanPro, next.Plan)
		// The period boundary stays put so a later recovery anchors correctly.
		require.NotNil(t, next.CurrentPeriodEnd)
		assert.Equal(t, periodEnd, *next.CurrentPeriodEnd)
	})

	t.Run("rejected outside active and downgrading", func(t *testing.T) {
		t.Parallel()

		for _, status := range []billing.Status{
			billing.StatusCanceling,
			billing.StatusPastDue,
			billing.StatusCanceled,
			billing.StatusPaused,
			billing.StatusPending,
		} {
			sub := paidSubscription(status, billing.PlanPro, periodEnd)
			_, err := billing.ApplyRenewal(sub, true, now)
			assert.ErrorIs(t, err, billing.ErrInvalidTransition, "status %s", status)
		}
	})
}

func TestApplyCancellation(t *testing.T) {
	t.Parallel()

	periodEnd := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := periodEnd.Add(time.Hour)

	t.Run("lands on the free plan with credentials cleared", func(t *testing.T) {
		t.Parallel()

		sub := paidSubscription(billing.StatusCanceling, billing.PlanPlus, periodEnd)
		next, err := billing.ApplyCancellation(sub, now)
		require.NoError(t, err)

		assert.Equal(t, billing.StatusCanceled, next.Status)
		assert.Equal(t, billing.PlanFree, next.Plan)
		assert.Empty(t, next.AuthorizationToken)
		assert.Nil(t, next.CurrentPeriodEnd)
	})

	t.Run("only valid from canceling", func(t *testing.T) {
		t.Parallel()

		sub := paidSubscription(billing.StatusActive, billing.PlanPro, periodEnd)
		_, err := billing.ApplyCancellation(sub, now)
		assert.ErrorIs(t, err, billing.ErrInvalidTransition)
	})
}

func TestApplyProviderDeleted(t *testing.T) {
	t.Parallel()

	periodEnd := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := periodEnd.Add(time.Hour)

	for _, status := range []billing.Status{
		billing.StatusActive,
		billing.StatusCanceling,
		billing.StatusDowngrading,
		billing.StatusPastDue,
		billing.StatusPaused,
	} {
		sub := paidSubscription(status, billing.PlanPro, periodEnd)
		next := billing.ApplyProviderDeleted(sub, now)

		assert.Equal(t, billing.StatusCanceled, next.Status, "from %s", status)
		assert.Equal(t, billing.PlanFree, next.Plan)
		assert.Empty(t, next.AuthorizationToken)
		assert.Nil(t, next.CurrentPeriodEnd)
	}
}

func TestRequestCancel(t *testing.T) {
	t.Parallel()

	periodEnd := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := periodEnd.Add(-10 * 24 * time.Hour)

	sub := paidSubscription(billing.StatusActive, billing.PlanPro, periodEnd)
	next, err := billing.RequestCancel(sub, now)
	require.NoError(t, err)

	// Paid access continues until the period boundary.
	assert.Equal(t, billing.StatusCanceling, next.Status)
	assert.Equal(t, billing.PlanPro, next.Plan)
	require.NotNil(t, next.CurrentPeriodEnd)
	assert.Equal(t, periodEnd, *next.CurrentPeriodEnd)

	_, err = billing.RequestCancel(next, now)
	assert.ErrorIs(t, err, billing.ErrInvalidTransition)
}

func TestRequestDowngrade(t *testing.T) {
	t.Parallel()

	periodEnd := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := periodEnd.Add(-10 * 24 * time.Hour)

	sub := paidSubscription(billing.StatusActive, billing.PlanPlus, periodEnd)

	t.Run("schedules the target for period end", func(t *testing.T) {
		t.Parallel()

		next, err := billing.RequestDowngrade(sub, billing.PlanPro, now)
		require.NoError(t, err)

		assert.Equal(t, billing.StatusDowngrading, next.Status)
		assert.Equal(t, billing.PlanPlus, next.Plan)
		assert.Equal(t, billing.PlanPro, next.ScheduledPlan)
	})

	t.Run("requires an explicit target", func(t *testing.T) {
		t.Parallel()

		_, err := billing.RequestDowngrade(sub, "", now)
		assert.ErrorIs(t, err, billing.ErrInvalidTransition)
	})
}

func TestChargePlan(t *testing.T) {
	t.Parallel()

	catalog := billing.DefaultCatalog()
	periodEnd := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	active := paidSubscription(billing.StatusActive, billing.PlanPlus, periodEnd)
	assert.Equal(t, billing.PlanPlus, billing.ChargePlan(active, catalog).ID)

	// During a downgrade the user is billed the upcoming plan's price.
	downgrading := paidSubscription(billing.StatusDowngrading, billing.PlanPlus, periodEnd)
	downgrading.ScheduledPlan = billing.PlanPro
	assert.Equal(t, billing.PlanPro, billing.ChargePlan(downgrading, catalog).ID)
}

func TestMapProviderStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw    string
		want   billing.Status
		mapped bool
	}{
		{"active", billing.StatusActive, true},
		{"trialing", billing.StatusActive, true},
		{"past_due", billing.StatusPastDue, true},
		{"unpaid", billing.StatusPastDue, true},
		{"incomplete", billing.StatusPending, true},
		{"paused", billing.StatusPaused, true},
		{"canceled", billing.StatusCanceled, true},
		{"cancelled", billing.StatusCanceled, true},
		{"non-renew", billing.StatusCanceling, true},
		{"weird_future_status", billing.Status("weird_future_status"), false},
	}

	for _, tt := range tests {
		got, mapped := billing.MapProviderStatus(tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
		assert.Equal(t, tt.mapped, mapped, tt.raw)
	}
}

func TestCatalogLookupUnknownPlanIsFree(t *testing.T) {
	t.Parallel()

	catalog := billing.DefaultCatalog()
	plan := catalog.Lookup("enterprise_legacy")

	assert.Equal(t, billing.PlanFree, plan.ID)
	assert.Zero(t, plan.Amount)
	assert.False(t, catalog.IsPaid("enterprise_legacy"))
}
