// Package logging provides the per-request structured logger used across the gateway core.
package logging

import (
	"context"

	"github.com/Laisky/zap"
)

type ctxKey struct{}

// Root is the process-wide fallback logger, used before a request-scoped logger is available
// (startup, background cleanup ticks) and as the base every request logger forks from.
var Root = zap.NewNop()

// Init installs the process-wide logger. Must be called once during process startup, before
// any request is served.
func Init(l *zap.Logger) {
	if l != nil {
		Root = l
	}
}

// WithCorrelationID returns a context carrying a logger annotated with correlation_id, the way
// every subsequent log line in the request's lifetime picks it up without re-stating it.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	l := Root.With(zap.String("correlation_id", correlationID))
	return context.WithValue(ctx, ctxKey{}, l)
}

// From extracts the request-scoped logger from ctx, falling back to Root if none was attached.
func From(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return Root
	}
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return Root
}
