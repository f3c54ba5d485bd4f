package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/billingkit/pkg/pg"
)

// querier is the subset of pgx operations the stores need. Both
// *pgxpool.Pool and pgx.Tx satisfy it, which lets the same store code run
// standalone or inside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgSubscriptionStore implements SubscriptionStore on PostgreSQL.
type PgSubscriptionStore struct {
	db querier
}

// NewPgSubscriptionStore creates a PostgreSQL-backed subscription store.
func NewPgSubscriptionStore(pool *pgxpool.Pool) *PgSubscriptionStore {
	return &PgSubscriptionStore{db: pool}
}

const subscriptionColumns = `user_id, status, plan, scheduled_plan, current_period_end,
	authorization_token, provider_customer_ref, session_version, updated_at`

func (s *PgSubscriptionStore) Get(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1`, userID)
	return scanSubscription(row)
}

func (s *PgSubscriptionStore) GetByCustomerRef(ctx context.Context, ref string) (*Subscription, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE provider_customer_ref = $1`, ref)
	return scanSubscription(row)
}

type pgRow interface {
	Scan(dest ...any) error
}

func scanSubscription(row pgRow) (*Subscription, error) {
	var sub Subscription
	err := row.Scan(
		&sub.UserID,
		&sub.Status,
		&sub.Plan,
		&sub.ScheduledPlan,
		&sub.CurrentPeriodEnd,
		&sub.AuthorizationToken,
		&sub.ProviderCustomerRef,
		&sub.SessionVersion,
		&sub.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	return &sub, nil
}

func (s *PgSubscriptionStore) Save(ctx context.Context, sub *Subscription) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			status = EXCLUDED.status,
			plan = EXCLUDED.plan,
			scheduled_plan = EXCLUDED.scheduled_plan,
			current_period_end = EXCLUDED.current_period_end,
			authorization_token = EXCLUDED.authorization_token,
			provider_customer_ref = EXCLUDED.provider_customer_ref,
			updated_at = EXCLUDED.updated_at`,
		sub.UserID,
		sub.Status,
		sub.Plan,
		sub.ScheduledPlan,
		sub.CurrentPeriodEnd,
		sub.AuthorizationToken,
		sub.ProviderCustomerRef,
		sub.SessionVersion,
		sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

func (s *PgSubscriptionStore) ListDue(ctx context.Context, now time.Time, limit int) ([]*Subscription, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE plan <> $1
		  AND current_period_end IS NOT NULL
		  AND current_period_end <= $2
		ORDER BY current_period_end
		LIMIT $3`,
		PlanFree, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read due subscriptions: %w", err)
	}

	return subs, nil
}

// BumpSessionVersion uses a single-statement increment so concurrent bumps
// serialize on the row lock instead of losing updates.
func (s *PgSubscriptionStore) BumpSessionVersion(ctx context.Context, userID uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE subscriptions SET session_version = session_version + 1 WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to bump session version: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

// PgEventStore implements EventStore on PostgreSQL, using the
// (event_id, provider) primary key as the admission gate.
type PgEventStore struct {
	db querier
}

// NewPgEventStore creates a PostgreSQL-backed webhook event store.
func NewPgEventStore(pool *pgxpool.Pool) *PgEventStore {
	return &PgEventStore{db: pool}
}

func (s *PgEventStore) Admit(ctx context.Context, eventID string, provider Provider, eventType string, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO webhook_events (event_id, provider, event_type, processed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id, provider) DO NOTHING`,
		eventID, provider, eventType, at)
	if err != nil {
		// A concurrent insert can still surface as a unique violation
		// instead of a zero-row conflict result.
		if pg.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to admit event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PgEventStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM webhook_events WHERE processed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim webhook events: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PgStorage implements Storage on a shared connection pool. RunAtomic
// wraps event admission and subscription writes in a single transaction,
// so a rejected admission also aborts the effect and a failed effect
// rolls back the admission. Concurrent deliveries of the same event
// serialize on the webhook_events primary key: the second insert waits
// for the first transaction, then reports a conflict.
type PgStorage struct {
	*PgSubscriptionStore
	*PgEventStore
	pool *pgxpool.Pool
}

// NewPgStorage creates PostgreSQL-backed billing storage.
func NewPgStorage(pool *pgxpool.Pool) *PgStorage {
	return &PgStorage{
		PgSubscriptionStore: NewPgSubscriptionStore(pool),
		PgEventStore:        NewPgEventStore(pool),
		pool:                pool,
	}
}

func (s *PgStorage) RunAtomic(ctx context.Context, fn func(subs SubscriptionStore, events EventStore) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&PgSubscriptionStore{db: tx}, &PgEventStore{db: tx})
	})
}
