// Package ratelimit provides fixed-window rate limiting for HTTP endpoints
// and other keyed operations.
//
// A window opens on the first request for a key and expires exactly one
// window duration later. All requests inside the window share a single
// counter; when the window expires the counter restarts at zero. A rejected
// check has no side effect beyond reporting when the window resets.
//
// The core type is FixedWindow, which delegates counter storage to a Store
// implementation. MemoryStore keeps counters in process memory with periodic
// cleanup of expired windows. RedisStore shares counters across processes
// using a single atomic Lua script per check.
//
// # Usage
//
//	store := ratelimit.NewMemoryStore()
//	defer store.Close()
//
//	limiter, err := ratelimit.NewFixedWindow(store, 5, time.Minute)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	r.Use(ratelimit.Middleware(limiter, ratelimit.Composite(
//		ratelimit.ByClientIP,
//		ratelimit.ByPath,
//	)))
//
// The middleware sets X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset headers on every response, plus Retry-After on
// rejections. All header values are expressed in seconds.
package ratelimit
