// Package requestctx carries request-scoped identifiers from the HTTP layer
// into the payroll engine's logs.
package requestctx

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	organizationKey
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestID(ctx context.Context) string {
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

// WithOrganization records the organization the caller acts for. Payloads
// that name no organization fall back to it.
func WithOrganization(ctx context.Context, organizationID string) context.Context {
	return context.WithValue(ctx, organizationKey, organizationID)
}

func Organization(ctx context.Context) string {
	value, _ := ctx.Value(organizationKey).(string)
	return value
}

// Logger annotates logger with whichever identifiers ctx carries.
func Logger(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if id := RequestID(ctx); id != "" {
		logger = logger.With("requestId", id)
	}
	if org := Organization(ctx); org != "" {
		logger = logger.With("callerOrganizationId", org)
	}
	return logger
}
