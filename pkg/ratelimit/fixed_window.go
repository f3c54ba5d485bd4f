package ratelimit

import (
	"context"
	"time"
)

// FixedWindow implements a fixed-window rate limiter. The window opens on
// the first request for a key and expires exactly one window duration
// later; the counter restarts from zero on expiry rather than decaying
// gradually.
type FixedWindow struct {
	store  Store
	limit  int
	window time.Duration
}

// NewFixedWindow creates a fixed-window limiter allowing limit requests
// per window for each key.
func NewFixedWindow(store Store, limit int, window time.Duration) (*FixedWindow, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if window <= 0 {
		return nil, ErrInvalidWindow
	}

	return &FixedWindow{
		store:  store,
		limit:  limit,
		window: window,
	}, nil
}

// Allow checks whether a request for the given key is admitted and, if so,
// counts it against the current window.
func (fw *FixedWindow) Allow(ctx context.Context, key string) (*Result, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}

	allowed, count, resetAt, err := fw.store.Take(ctx, key, fw.limit, fw.window)
	if err != nil {
		return nil, err
	}

	return &Result{
		Allowed:   allowed,
		Limit:     fw.limit,
		Remaining: max(0, fw.limit-int(count)),
		ResetAt:   resetAt,
	}, nil
}

// Status reports the current window state without consuming a slot.
func (fw *FixedWindow) Status(ctx context.Context, key string) (*Result, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}

	count, resetAt, err := fw.store.Peek(ctx, key, fw.window)
	if err != nil {
		return nil, err
	}

	remaining := max(0, fw.limit-int(count))

	return &Result{
		Allowed:   remaining > 0,
		Limit:     fw.limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// Reset clears the counter for the given key.
func (fw *FixedWindow) Reset(ctx context.Context, key string) error {
	if key == "" {
		return ErrKeyRequired
	}
	return fw.store.Delete(ctx, key)
}
