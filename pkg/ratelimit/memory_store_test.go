package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/ratelimit"
)

func TestMemoryStore_Take(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := ratelimit.NewMemoryStore(ratelimit.WithCleanupInterval(0))
	t.Cleanup(store.Close)

	allowed, count, resetAt, err := store.Take(ctx, "k", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.EqualValues(t, 1, count)
	assert.True(t, resetAt.After(time.Now()))

	allowed, count, _, err = store.Take(ctx, "k", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.EqualValues(t, 2, count)

	allowed, count, _, err = store.Take(ctx, "k", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.EqualValues(t, 2, count)
}

func TestMemoryStore_ExpiredEntryIsFreshWindow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := ratelimit.NewMemoryStore(ratelimit.WithCleanupInterval(0))
	t.Cleanup(store.Close)

	allowed, _, _, err := store.Take(ctx, "k", 1, 50*time.Millisecond)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, _, _, err = store.Take(ctx, "k", 1, 50*time.Millisecond)
	require.NoError(t, err)
	require.False(t, allowed)

	time.Sleep(80 * time.Millisecond)

	allowed, count, _, err := store.Take(ctx, "k", 1, 50*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.EqualValues(t, 1, count)
}

func TestMemoryStore_Peek(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := ratelimit.NewMemoryStore(ratelimit.WithCleanupInterval(0))
	t.Cleanup(store.Close)

	count, _, err := store.Peek(ctx, "missing", time.Minute)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, _, _, err = store.Take(ctx, "k", 5, time.Minute)
	require.NoError(t, err)

	count, resetAt, err := store.Peek(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	assert.True(t, resetAt.After(time.Now()))
}

func TestMemoryStore_Cleanup(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := ratelimit.NewMemoryStore(ratelimit.WithCleanupInterval(20 * time.Millisecond))
	t.Cleanup(store.Close)

	_, _, _, err := store.Take(ctx, "short", 5, 10*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	// After cleanup the entry behaves as a fresh window.
	count, _, err := store.Peek(ctx, "short", time.Minute)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMemoryStore_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	store := ratelimit.NewMemoryStore()
	store.Close()
	store.Close()
}
