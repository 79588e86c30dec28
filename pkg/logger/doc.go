// Package logger provides structured logging with configurable log levels.
// It wraps the standard log/slog package: JSON output in production, text
// output elsewhere, with the service and environment attached to every record.
package logger
