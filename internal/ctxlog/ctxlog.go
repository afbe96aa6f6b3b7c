// Package ctxlog carries a *slog.Logger through context.Context so that
// deeply nested job operations can log without plumbing a logger argument.
package ctxlog

import (
	"context"
	"log/slog"
)

// key is an unexported type so our context key cannot collide with keys
// defined by other packages.
type key struct{}

var loggerKey = key{}

// WithLogger returns a new context carrying the provided logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext extracts the logger from a context. When no logger was
// attached it falls back to slog.Default so library code never has to
// nil-check.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
