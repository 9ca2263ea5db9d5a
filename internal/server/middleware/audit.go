package middleware

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"auth-control-plane/internal/audit"
	auditdomain "auth-control-plane/internal/audit/domain"
	auditrepo "auth-control-plane/internal/audit/repository"
)

// Audit records an audit log entry after each authenticated request. skipPaths is the
// set of paths to not audit (e.g. /healthz). Unauthenticated requests are not audited
// here; the auth handlers log those flows explicitly with their own actions.
// Create is best-effort: failures are logged and do not fail the request.
func Audit(repo auditrepo.Repository, skipPaths map[string]bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			if repo == nil || skipPaths[r.URL.Path] {
				return
			}
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				return
			}
			pattern := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				pattern = rctx.RoutePattern()
			}
			ar := audit.ParseRoute(r.Method, pattern)
			entry := &auditdomain.AuditLog{
				ID:        uuid.New().String(),
				ActorID:   identity.Subject,
				Action:    ar.Action,
				Resource:  ar.Resource,
				IP:        ClientIP(r.Context()),
				Metadata:  "",
				CreatedAt: time.Now().UTC(),
			}
			if createErr := repo.Create(r.Context(), entry); createErr != nil {
				log.Printf("audit: failed to create audit log: %v", createErr)
			}
		})
	}
}
