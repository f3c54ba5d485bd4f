// Package redis provides connection helpers for go-redis clients, used by
// the rate limiter's shared counter store.
package redis
