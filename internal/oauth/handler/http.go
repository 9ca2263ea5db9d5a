// Package handler exposes the OAuth2 endpoints: the client-credentials token
// grant and RFC 7662 token introspection.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"auth-control-plane/internal/audit"
	"auth-control-plane/internal/oauth/service"
	"auth-control-plane/internal/server/middleware"
	"auth-control-plane/internal/server/respond"
	"auth-control-plane/internal/telemetry"
	telemetrydomain "auth-control-plane/internal/telemetry/domain"
)

// tokenResponse is the RFC 6749 success body for the token endpoint.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

// Handler serves the /oauth2 routes.
type Handler struct {
	oauth   *service.OAuthService
	audit   audit.AuditLogger
	emitter telemetry.EventEmitter
}

// NewHandler returns an OAuth2 HTTP handler. audit and emitter may be nil.
func NewHandler(oauth *service.OAuthService, auditLogger audit.AuditLogger, emitter telemetry.EventEmitter) *Handler {
	return &Handler{oauth: oauth, audit: auditLogger, emitter: emitter}
}

// Mount registers the OAuth2 routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/token", h.token)
	r.Post("/introspect", h.introspect)
}

// token serves the client-credentials grant. Error responses use the
// RFC 6749 envelope: a bad grant_type is invalid_request or
// unsupported_grant_type with 400, a credential failure is invalid_client
// with 401. The two never collapse into one category.
func (h *Handler) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respond.OAuthError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	grantType := r.PostForm.Get("grant_type")
	if grantType == "" {
		respond.OAuthError(w, http.StatusBadRequest, "invalid_request", "grant_type is required")
		return
	}
	if grantType != service.GrantClientCredentials {
		respond.OAuthError(w, http.StatusBadRequest, "unsupported_grant_type", "only client_credentials is supported")
		return
	}

	clientID, clientSecret := clientCredentials(r)
	scopes := strings.Fields(r.PostForm.Get("scope"))

	grant, err := h.oauth.IssueClientTokens(r.Context(), clientID, clientSecret, scopes)
	if err != nil {
		if errors.Is(err, service.ErrInvalidClient) {
			h.logEvent(r, clientID, "client_auth_failure", "token", "")
			h.emit(r, &telemetrydomain.SecurityEvent{
				EventType: telemetrydomain.EventClientAuthFailure,
				Source:    "oauth-api",
				Metadata:  jsonMeta(map[string]string{"client_id": clientID, "client_ip": middleware.ClientIP(r.Context())}),
			})
			respond.OAuthError(w, http.StatusUnauthorized, "invalid_client", "client authentication failed")
			return
		}
		respond.OAuthError(w, http.StatusInternalServerError, "server_error", "token issuance failed")
		return
	}

	h.logEvent(r, grant.ClientID, "issue", "token", "")

	// Token responses must not be cached (RFC 6749 section 5.1).
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	respond.JSON(w, http.StatusOK, tokenResponse{
		AccessToken: grant.AccessToken,
		TokenType:   "bearer",
		ExpiresIn:   expiresIn(grant.ExpiresAt),
		Scope:       strings.Join(grant.Scopes, " "),
	})
}

// introspect reports token state and always answers 200. A malformed body or
// missing token field is simply an inactive token, never an error.
func (h *Handler) introspect(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respond.JSON(w, http.StatusOK, &service.Introspection{Active: false})
		return
	}
	info := h.oauth.Introspect(r.Context(), r.PostForm.Get("token"))

	actorID := ""
	if identity, ok := middleware.IdentityFromContext(r.Context()); ok {
		actorID = identity.Subject
	}
	h.logEvent(r, actorID, "introspect", "token", "")

	w.Header().Set("Cache-Control", "no-store")
	respond.JSON(w, http.StatusOK, info)
}

// clientCredentials pulls the client id and secret from HTTP Basic auth,
// falling back to the form fields.
func clientCredentials(r *http.Request) (string, string) {
	if clientID, clientSecret, ok := r.BasicAuth(); ok {
		return clientID, clientSecret
	}
	return r.PostForm.Get("client_id"), r.PostForm.Get("client_secret")
}

func (h *Handler) logEvent(r *http.Request, actorID, action, resource, metadata string) {
	if h.audit == nil {
		return
	}
	h.audit.LogEvent(r.Context(), actorID, action, resource, metadata)
}

func (h *Handler) emit(r *http.Request, event *telemetrydomain.SecurityEvent) {
	if h.emitter == nil {
		return
	}
	telemetry.EmitAsync(h.emitter, r.Context(), event)
}

func expiresIn(expiresAt time.Time) int64 {
	d := int64(time.Until(expiresAt).Seconds())
	if d < 0 {
		return 0
	}
	return d
}

func jsonMeta(m map[string]string) []byte {
	b, _ := json.Marshal(m)
	return b
}
