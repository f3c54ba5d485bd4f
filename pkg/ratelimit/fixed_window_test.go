package ratelimit_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/ratelimit"
)

func newTestLimiter(t *testing.T, limit int, window time.Duration) *ratelimit.FixedWindow {
	t.Helper()

	store := ratelimit.NewMemoryStore(ratelimit.WithCleanupInterval(0))
	t.Cleanup(store.Close)

	limiter, err := ratelimit.NewFixedWindow(store, limit, window)
	require.NoError(t, err)

	return limiter
}

func TestNewFixedWindow_Validation(t *testing.T) {
	t.Parallel()

	store := ratelimit.NewMemoryStore(ratelimit.WithCleanupInterval(0))
	t.Cleanup(store.Close)

	tests := []struct {
		name    string
		store   ratelimit.Store
		limit   int
		window  time.Duration
		wantErr error
	}{
		{"nil store", nil, 5, time.Minute, ratelimit.ErrStoreRequired},
		{"zero limit", store, 0, time.Minute, ratelimit.ErrInvalidLimit},
		{"negative limit", store, -1, time.Minute, ratelimit.ErrInvalidLimit},
		{"zero window", store, 5, 0, ratelimit.ErrInvalidWindow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ratelimit.NewFixedWindow(tt.store, tt.limit, tt.window)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFixedWindow_AllowSequence(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	limiter := newTestLimiter(t, 5, time.Minute)

	// First five requests are admitted with a decreasing remaining count.
	for want := 4; want >= 0; want-- {
		result, err := limiter.Allow(ctx, "user:1")
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, 5, result.Limit)
		assert.Equal(t, want, result.Remaining)
	}

	// Sixth request is rejected without consuming anything.
	result, err := limiter.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
	assert.Positive(t, result.ResetIn())
	assert.Positive(t, result.RetryAfter())
}

func TestFixedWindow_WindowExpiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	limiter := newTestLimiter(t, 3, 100*time.Millisecond)

	for range 3 {
		result, err := limiter.Allow(ctx, "user:2")
		require.NoError(t, err)
		require.True(t, result.Allowed)
	}

	result, err := limiter.Allow(ctx, "user:2")
	require.NoError(t, err)
	require.False(t, result.Allowed)

	time.Sleep(150 * time.Millisecond)

	// Counter restarts at zero after expiry, not gradually.
	result, err = limiter.Allow(ctx, "user:2")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 2, result.Remaining)
}

func TestFixedWindow_KeysAreIndependent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	limiter := newTestLimiter(t, 1, time.Minute)

	first, err := limiter.Allow(ctx, "user:a")
	require.NoError(t, err)
	assert.True(t, first.Allowed)

	blocked, err := limiter.Allow(ctx, "user:a")
	require.NoError(t, err)
	assert.False(t, blocked.Allowed)

	other, err := limiter.Allow(ctx, "user:b")
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestFixedWindow_RejectionHasNoSideEffect(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	limiter := newTestLimiter(t, 2, time.Minute)

	for range 2 {
		_, err := limiter.Allow(ctx, "user:3")
		require.NoError(t, err)
	}

	// Repeated rejections must not grow the counter.
	for range 10 {
		result, err := limiter.Allow(ctx, "user:3")
		require.NoError(t, err)
		require.False(t, result.Allowed)
	}

	status, err := limiter.Status(ctx, "user:3")
	require.NoError(t, err)
	assert.Equal(t, 0, status.Remaining)
	assert.Equal(t, 2, status.Limit)
}

func TestFixedWindow_Status(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	limiter := newTestLimiter(t, 5, time.Minute)

	status, err := limiter.Status(ctx, "user:4")
	require.NoError(t, err)
	assert.True(t, status.Allowed)
	assert.Equal(t, 5, status.Remaining)

	_, err = limiter.Allow(ctx, "user:4")
	require.NoError(t, err)

	// Status does not consume a slot.
	for range 3 {
		status, err = limiter.Status(ctx, "user:4")
		require.NoError(t, err)
		assert.Equal(t, 4, status.Remaining)
	}
}

func TestFixedWindow_Reset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	limiter := newTestLimiter(t, 1, time.Minute)

	_, err := limiter.Allow(ctx, "user:5")
	require.NoError(t, err)

	blocked, err := limiter.Allow(ctx, "user:5")
	require.NoError(t, err)
	require.False(t, blocked.Allowed)

	require.NoError(t, limiter.Reset(ctx, "user:5"))

	result, err := limiter.Allow(ctx, "user:5")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestFixedWindow_EmptyKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	limiter := newTestLimiter(t, 1, time.Minute)

	_, err := limiter.Allow(ctx, "")
	assert.ErrorIs(t, err, ratelimit.ErrKeyRequired)

	_, err = limiter.Status(ctx, "")
	assert.ErrorIs(t, err, ratelimit.ErrKeyRequired)

	assert.ErrorIs(t, limiter.Reset(ctx, ""), ratelimit.ErrKeyRequired)
}

func TestFixedWindow_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	limiter := newTestLimiter(t, 50, time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			result, err := limiter.Allow(ctx, "shared")
			require.NoError(t, err)

			if result.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, 50, allowed)
}
