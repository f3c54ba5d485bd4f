package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// maxSweepErrors bounds the error list carried in a SweepResult so a
// systemic outage cannot balloon the cron response.
const maxSweepErrors = 10

// SweepResult summarizes one billing sweep.
type SweepResult struct {
	Skipped      bool // another run was in flight or the throttle rejected the start
	Processed    int  // candidates examined after the fresh re-read
	Renewed      int
	Downgraded   int
	Canceled     int
	Failed       int // charge attempts that ended in past_due
	Errors       []error
	PurgedEvents int64 // admission records reclaimed by retention GC
}

// RunSweep executes one reconciliation pass over due subscriptions:
// completes pending cancellations, attempts renewal charges and applies
// scheduled downgrades. Overlapping and rapid-fire invocations are
// rejected by the run coordinator; a rejected run returns
// SweepResult{Skipped: true} with a nil error, which is a success from
// the scheduler's point of view.
func (s *Service) RunSweep(ctx context.Context, now time.Time) (*SweepResult, error) {
	if !s.coordinator.TryAcquire(now) {
		return &SweepResult{Skipped: true}, nil
	}
	defer s.coordinator.Release()

	res := &SweepResult{}

	due, err := s.store.ListDue(ctx, now, s.cfg.MaxCandidates)
	if err != nil {
		return res, fmt.Errorf("failed to list due subscriptions: %w", err)
	}

	s.log.InfoContext(ctx, "billing sweep started",
		slog.Int("candidates", len(due)))

	seen := make(map[uuid.UUID]struct{}, len(due))
	for _, candidate := range due {
		if ctx.Err() != nil {
			res.addError(ctx.Err())
			break
		}
		if _, ok := seen[candidate.UserID]; ok {
			continue
		}
		seen[candidate.UserID] = struct{}{}

		if err := s.processDue(ctx, candidate.UserID, now, res); err != nil {
			res.addError(fmt.Errorf("user %s: %w", candidate.UserID, err))
		}
	}

	if s.cfg.EventRetention > 0 {
		purged, err := s.store.DeleteOlderThan(ctx, now.Add(-s.cfg.EventRetention))
		if err != nil {
			s.log.ErrorContext(ctx, "event retention sweep failed", "error", err)
		} else {
			res.PurgedEvents = purged
		}
	}

	s.log.InfoContext(ctx, "billing sweep finished",
		slog.Int("processed", res.Processed),
		slog.Int("renewed", res.Renewed),
		slog.Int("downgraded", res.Downgraded),
		slog.Int("canceled", res.Canceled),
		slog.Int("failed", res.Failed),
		slog.Int("errors", len(res.Errors)))

	return res, nil
}

// processDue reconciles a single due subscription. It re-reads the row
// first: webhooks may have advanced the state between the candidate
// listing and now, and acting on the stale snapshot would double-process.
func (s *Service) processDue(ctx context.Context, userID uuid.UUID, now time.Time, res *SweepResult) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing subscription: %v", r)
		}
	}()

	sub, err := s.store.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to reload subscription: %w", err)
	}
	if !sub.IsDue(now) || !s.catalog.IsPaid(sub.Plan) {
		return nil
	}

	res.Processed++

	switch sub.Status {
	case StatusCanceling:
		return s.completeCancellation(ctx, sub, now, res)
	case StatusActive, StatusDowngrading:
		return s.renew(ctx, sub, now, res)
	default:
		// past_due, paused and pending rows wait for a webhook or a new
		// charge credential; the sweep leaves them alone.
		s.log.DebugContext(ctx, "due subscription left untouched",
			"user_id", userID, "status", string(sub.Status))
		return nil
	}
}

func (s *Service) completeCancellation(ctx context.Context, sub *Subscription, now time.Time, res *SweepResult) error {
	next, err := ApplyCancellation(*sub, now)
	if err != nil {
		return err
	}
	if err := s.store.Save(ctx, &next); err != nil {
		return fmt.Errorf("failed to persist cancellation: %w", err)
	}
	if err := s.store.BumpSessionVersion(ctx, sub.UserID); err != nil {
		return fmt.Errorf("failed to bump session version: %w", err)
	}

	res.Canceled++
	s.notify(ctx, sub.UserID, NotifyCanceled)
	s.log.InfoContext(ctx, "subscription canceled at period end", "user_id", sub.UserID)
	return nil
}

func (s *Service) renew(ctx context.Context, sub *Subscription, now time.Time, res *SweepResult) error {
	wasDowngrading := sub.Status == StatusDowngrading

	charged := false
	if CanAttemptCharge(*sub) {
		plan := ChargePlan(*sub, s.catalog)
		result, err := s.gateway.Charge(ctx, ChargeRequest{
			AuthorizationToken: sub.AuthorizationToken,
			CustomerRef:        sub.ProviderCustomerRef,
			Amount:             plan.Amount,
			Currency:           plan.Currency,
			IdempotencyRef:     renewalIdempotencyRef(sub.UserID, now),
			Metadata: map[string]string{
				"user_id": sub.UserID.String(),
				"plan":    string(plan.ID),
			},
		})
		if err != nil {
			// Transport failure: state stays untouched, the next sweep
			// retries with a fresh idempotency reference.
			return fmt.Errorf("charge attempt failed: %w", err)
		}
		charged = result.Status == ChargeSucceeded
	}

	next, err := ApplyRenewal(*sub, charged, now)
	if err != nil {
		return err
	}
	if err := s.store.Save(ctx, &next); err != nil {
		return fmt.Errorf("failed to persist renewal outcome: %w", err)
	}

	if !charged {
		res.Failed++
		s.notify(ctx, sub.UserID, NotifyPaymentFailed)
		s.log.WarnContext(ctx, "renewal charge failed", "user_id", sub.UserID, "plan", string(sub.Plan))
		return nil
	}

	if wasDowngrading {
		if err := s.store.BumpSessionVersion(ctx, sub.UserID); err != nil {
			return fmt.Errorf("failed to bump session version: %w", err)
		}
		res.Downgraded++
		s.notify(ctx, sub.UserID, NotifyDowngraded)
		s.log.InfoContext(ctx, "subscription downgraded", "user_id", sub.UserID, "plan", string(next.Plan))
		return nil
	}

	res.Renewed++
	s.notify(ctx, sub.UserID, NotifyRenewed)
	s.log.InfoContext(ctx, "subscription renewed", "user_id", sub.UserID, "plan", string(next.Plan))
	return nil
}

// notify delivers a notification, logging failures. Billing work never
// aborts on a notification error.
func (s *Service) notify(ctx context.Context, userID uuid.UUID, kind NotificationKind) {
	if err := s.notifier.Notify(ctx, userID, kind); err != nil {
		s.log.ErrorContext(ctx, "failed to send billing notification",
			"user_id", userID, "kind", string(kind), "error", err)
	}
}

// renewalIdempotencyRef builds a reference unique per user per sweep run,
// so a retried gateway request within one run cannot double-bill while a
// later run can legitimately charge again.
func renewalIdempotencyRef(userID uuid.UUID, now time.Time) string {
	return fmt.Sprintf("renewal:%s:%d", userID, now.Unix())
}

func (r *SweepResult) addError(err error) {
	if len(r.Errors) < maxSweepErrors {
		r.Errors = append(r.Errors, err)
	}
}
