package telemetry

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type corrKeyType struct{}

var corrKey corrKeyType

// NewCorrelationID returns a fresh random id.
func NewCorrelationID() string {
	return uuid.NewString()
}

// WithCorrelation returns a context carrying the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// Correlation returns the correlation id or an empty string.
func Correlation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// Logger returns the default logger with the correlation id attached when present.
func Logger(ctx context.Context) *slog.Logger {
	if id := Correlation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
