package ratelimit_test

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/ratelimit"
)

func TestMiddleware_SetsHeaders(t *testing.T) {
	t.Parallel()

	limiter := newTestLimiter(t, 5, time.Minute)

	handler := ratelimit.Middleware(limiter, ratelimit.ByClientIP)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	req := httptest.NewRequest(http.MethodPost, "/cron/billing", nil)
	req.RemoteAddr = "10.0.0.1:4321"
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "4", rec.Header().Get("X-RateLimit-Remaining"))

	reset, err := strconv.Atoi(rec.Header().Get("X-RateLimit-Reset"))
	require.NoError(t, err)
	assert.Positive(t, reset)
}

func TestMiddleware_RejectsOverLimit(t *testing.T) {
	t.Parallel()

	limiter := newTestLimiter(t, 2, time.Minute)

	calls := 0
	handler := ratelimit.Middleware(limiter, ratelimit.ByClientIP)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
		}),
	)

	for range 2 {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = "10.0.0.2:4321"
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.2:4321"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	retryAfter, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Positive(t, retryAfter)
}

func TestMiddleware_EmptyKeySkipsLimiting(t *testing.T) {
	t.Parallel()

	limiter := newTestLimiter(t, 1, time.Minute)

	emptyKey := func(r *http.Request) string { return "" }

	calls := 0
	handler := ratelimit.Middleware(limiter, emptyKey)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
		}),
	)

	for range 5 {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}

	assert.Equal(t, 5, calls)
}

func TestMiddleware_RequiresKeyFunc(t *testing.T) {
	t.Parallel()

	limiter := newTestLimiter(t, 1, time.Minute)

	assert.Panics(t, func() {
		ratelimit.Middleware(limiter, nil)
	})
}

func TestComposite(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		keyFuncs []ratelimit.KeyFunc
		setup    func(*http.Request)
		want     string
	}{
		{
			name:     "no key funcs",
			keyFuncs: nil,
			want:     "",
		},
		{
			name:     "single short key",
			keyFuncs: []ratelimit.KeyFunc{ratelimit.ByClientIP},
			setup:    func(r *http.Request) { r.RemoteAddr = "192.168.1.1:8080" },
			want:     "192.168.1.1",
		},
		{
			name:     "identity plus endpoint",
			keyFuncs: []ratelimit.KeyFunc{ratelimit.ByClientIP, ratelimit.ByPath},
			setup:    func(r *http.Request) { r.RemoteAddr = "192.168.1.1:8080" },
			want:     "192.168.1.1:/webhooks/stripe",
		},
		{
			name:     "empty parts are skipped",
			keyFuncs: []ratelimit.KeyFunc{ratelimit.ByHeader("X-Missing"), ratelimit.ByPath},
			want:     "/webhooks/stripe",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", nil)
			if tt.setup != nil {
				tt.setup(req)
			}

			got := ratelimit.Composite(tt.keyFuncs...)(req)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComposite_LongKeysAreHashed(t *testing.T) {
	t.Parallel()

	long := func(r *http.Request) string {
		return "very-long-identity-component-that-keeps-going-and-going-and-going"
	}

	req := httptest.NewRequest(http.MethodGet, "/some/fairly/long/endpoint/path", nil)
	key := ratelimit.Composite(long, ratelimit.ByPath)(req)

	assert.Len(t, key, 32)
}
