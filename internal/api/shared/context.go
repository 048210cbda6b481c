package shared

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/tasksync/internal/domain"
)

// ContextKey is the type for request context keys set by the API layer.
type ContextKey string

const (
	// IdentityContextKey holds the verified domain.Identity of the caller.
	IdentityContextKey ContextKey = "identity"

	// TraceIDKey is the key for the trace ID in the request context
	TraceIDKey ContextKey = "traceID"

	// TraceIDLength is the number of random bytes in a trace ID (32 hex characters).
	TraceIDLength = 16
)

// WithIdentity stores the verified caller identity in ctx.
func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, IdentityContextKey, id)
}

// IdentityFromContext returns the caller identity stored by the auth middleware.
// ok is false if none is present or the stored ID is nil.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(IdentityContextKey).(domain.Identity)
	if !ok || id.ID == uuid.Nil {
		return domain.Identity{}, false
	}
	return id, true
}

// SetTraceID adds a fresh trace ID to the context.
func SetTraceID(ctx context.Context) context.Context {
	return context.WithValue(ctx, TraceIDKey, generateTraceID())
}

// GetTraceID retrieves the trace ID from the context, or "" if absent.
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return ""
	}
	return traceID
}

// generateTraceID returns 16 random bytes as hex. If crypto/rand fails it
// falls back to a random UUID with the dashes removed, which has the same length.
func generateTraceID() string {
	b := make([]byte, TraceIDLength)
	if _, err := rand.Read(b); err != nil {
		slog.Error("failed to generate secure random trace ID",
			slog.String("error", err.Error()),
			slog.String("fallback", "uuid"))
		u := uuid.New()
		return hex.EncodeToString(u[:])
	}
	return hex.EncodeToString(b)
}
