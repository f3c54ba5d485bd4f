package ratelimit

import (
	"context"
	"time"
)

// Result contains the outcome of a rate limit check.
type Result struct {
	// Allowed indicates whether the request was admitted.
	Allowed bool

	// Limit is the maximum number of requests allowed per window.
	Limit int

	// Remaining is the number of requests left in the current window.
	Remaining int

	// ResetAt is the time when the current window expires.
	ResetAt time.Time
}

// RetryAfter returns how long to wait before the next request can succeed.
// Returns 0 if the request was admitted.
func (r *Result) RetryAfter() time.Duration {
	if r.Allowed {
		return 0
	}
	return time.Until(r.ResetAt)
}

// ResetIn returns the number of whole seconds until the window expires,
// rounded up so clients never retry early.
func (r *Result) ResetIn() int {
	d := time.Until(r.ResetAt)
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// Limiter is the interface implemented by rate limiting strategies.
type Limiter interface {
	// Allow checks whether a request for the given key is admitted.
	// Admission consumes one slot in the current window; rejection
	// consumes nothing.
	Allow(ctx context.Context, key string) (*Result, error)

	// Status reports the current window state without consuming a slot.
	Status(ctx context.Context, key string) (*Result, error)

	// Reset clears the counter for the given key.
	Reset(ctx context.Context, key string) error
}

// Store is the counter storage backend for fixed-window limiting.
// Implementations must make Take atomic with respect to concurrent callers.
type Store interface {
	// Take admits one request for key if fewer than limit requests have
	// been counted in the current window. A missing or expired entry is
	// equivalent to a fresh window. On rejection the counter is not
	// incremented.
	Take(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, count int64, resetAt time.Time, err error)

	// Peek returns the current counter and window expiry without
	// admitting anything. A missing entry reports a zero count with the
	// reset one full window away.
	Peek(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)

	// Delete removes the counter for key.
	Delete(ctx context.Context, key string) error
}
