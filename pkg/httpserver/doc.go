// Package httpserver provides a lightweight wrapper around net/http adding
// graceful shutdown on context cancellation or interrupt/TERM signals,
// configurable timeouts via functional options or env-backed Config, and
// health-check handlers for liveness and readiness probes.
package httpserver
