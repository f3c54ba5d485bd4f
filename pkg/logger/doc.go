// Package logger builds configured log/slog loggers with JSON or text
// output, per-environment defaults, and static service attributes.
package logger
