package middleware

import (
	"context"

	"auth-control-plane/internal/security"
)

type contextKey struct{ name string }

var (
	identityKey = contextKey{"identity"}
	badCredsKey = contextKey{"bad_credentials"}
	clientIPKey = contextKey{"client_ip"}
)

// WithIdentity returns a context carrying the validated access token identity.
// Handlers and downstream middleware read it via IdentityFromContext.
func WithIdentity(ctx context.Context, id *security.AccessIdentity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the access identity from context and true if set.
func IdentityFromContext(ctx context.Context) (*security.AccessIdentity, bool) {
	id, ok := ctx.Value(identityKey).(*security.AccessIdentity)
	return id, ok && id != nil
}

// withBadCredentials marks the context as having carried a token that failed validation.
// RequireScope uses the mark to answer 401 instead of 403.
func withBadCredentials(ctx context.Context) context.Context {
	return context.WithValue(ctx, badCredsKey, true)
}

// BadCredentials reports whether the request presented a token that failed validation.
func BadCredentials(ctx context.Context) bool {
	v, _ := ctx.Value(badCredsKey).(bool)
	return v
}

// WithClientIP returns a context carrying the client IP.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIP returns the client IP from context, or "unknown".
func ClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(clientIPKey).(string); ok && v != "" {
		return v
	}
	return "unknown"
}
