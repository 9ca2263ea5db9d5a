package middleware

import (
	"log"
	"net/http"
	"strings"

	"auth-control-plane/internal/policy/engine"
	"auth-control-plane/internal/security"
	"auth-control-plane/internal/server/respond"
)

const bearerPrefix = "bearer "

// Authenticate validates the Bearer access token, when one is presented, and stores
// the resulting identity in the request context. Requests without a token pass through
// unauthenticated; requests with an invalid token pass through with a bad-credentials
// mark so RequireScope can distinguish the two.
func Authenticate(tokens *security.TokenProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			identity, err := tokens.ValidateAccess(token)
			if err != nil {
				next.ServeHTTP(w, r.WithContext(withBadCredentials(r.Context())))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireScope guards a route with a required scope. Unauthenticated requests get 403,
// requests with a failed token get 401, and authenticated requests without the scope get 403.
func RequireScope(evaluator engine.Evaluator, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				if BadCredentials(r.Context()) {
					respond.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "invalid or expired access token")
					return
				}
				respond.Error(w, http.StatusForbidden, "FORBIDDEN", "access token required")
				return
			}
			allowed, err := evaluator.Allow(r.Context(), identity.Scopes, scope)
			if err != nil {
				log.Printf("authz: evaluate scope %q: %v", scope, err)
			}
			if !allowed {
				respond.Error(w, http.StatusForbidden, "INSUFFICIENT_SCOPE", "insufficient scope")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractBearer returns the Bearer token from the Authorization header, or "" if missing or malformed.
func extractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
