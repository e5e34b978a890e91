// Package logging provides request-id context propagation so handler and
// upstream log lines can be correlated per request.
package logging

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const requestIDKey contextKey = "requestId"

// NewRequestID creates a fresh correlation id. It is echoed back to the
// caller in the X-Request-Id response header.
func NewRequestID() string {
	return uuid.New().String()
}

// WithRequestID injects a request id into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID retrieves the request id from the context, or "" if absent.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}
