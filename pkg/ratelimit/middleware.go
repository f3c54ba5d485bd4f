package ratelimit

import (
	"net/http"
	"strconv"
)

// Middleware enforces a rate limit using the provided Limiter and KeyFunc.
// Storage failures fail open so a broken backend cannot take endpoints down
// with it. Responses carry X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset headers; rejections additionally carry Retry-After.
// All values are expressed in seconds.
func Middleware(limiter Limiter, keyFunc KeyFunc) func(http.Handler) http.Handler {
	if keyFunc == nil {
		panic("ratelimit.Middleware: keyFunc is required")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			result, err := limiter.Allow(r.Context(), key)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.Itoa(result.ResetIn()))

			if !result.Allowed {
				retryAfter := max(1, result.ResetIn())
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// HandlerFunc wraps a single handler function with rate limiting.
func HandlerFunc(limiter Limiter, keyFunc KeyFunc, handler http.HandlerFunc) http.HandlerFunc {
	middleware := Middleware(limiter, keyFunc)
	return middleware(handler).ServeHTTP
}
