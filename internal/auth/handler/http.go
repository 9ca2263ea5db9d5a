// Package handler exposes the session auth flows over HTTP: register, login,
// current user, refresh, and logout.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	accountdomain "auth-control-plane/internal/account/domain"
	"auth-control-plane/internal/audit"
	"auth-control-plane/internal/auth/service"
	"auth-control-plane/internal/server/middleware"
	"auth-control-plane/internal/server/respond"
	"auth-control-plane/internal/telemetry"
	telemetrydomain "auth-control-plane/internal/telemetry/domain"
	tokensvc "auth-control-plane/internal/token/service"
)

// tokenPairBody is the JSON body returned by login and refresh.
type tokenPairBody struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
}

// accountBody is the JSON shape for account summaries (register, me).
type accountBody struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Handler serves the /auth routes.
type Handler struct {
	auth         *service.AuthService
	rotation     *tokensvc.RotationService
	audit        audit.AuditLogger
	emitter      telemetry.EventEmitter
	cookieName   string
	cookieSecure bool
}

// NewHandler returns an auth HTTP handler. audit and emitter may be nil; the
// flows then skip audit trail and security event emission.
func NewHandler(auth *service.AuthService, rotation *tokensvc.RotationService, auditLogger audit.AuditLogger, emitter telemetry.EventEmitter, cookieName string, cookieSecure bool) *Handler {
	return &Handler{
		auth:         auth,
		rotation:     rotation,
		audit:        auditLogger,
		emitter:      emitter,
		cookieName:   cookieName,
		cookieSecure: cookieSecure,
	}
}

// Mount registers the auth routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/register", h.register)
	r.Post("/login", h.login)
	r.Get("/me", h.me)
	r.Post("/refresh", h.refresh)
	r.Post("/logout", h.logout)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	account, err := h.auth.Register(r.Context(), in.Username, in.Email, in.Password)
	switch {
	case errors.Is(err, service.ErrValidation):
		respond.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	case errors.Is(err, service.ErrConflict):
		respond.Error(w, http.StatusConflict, "CONFLICT", "username or email already registered")
		return
	case err != nil:
		respond.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "registration failed")
		return
	}

	h.logEvent(r, account.ID, "register", "account", "")
	respond.JSON(w, http.StatusCreated, accountToBody(account))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	result, err := h.auth.Login(r.Context(), in.Username, in.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			h.logEvent(r, "", "login_failure", "session", "")
			h.emit(r, &telemetrydomain.SecurityEvent{
				EventType: telemetrydomain.EventLoginFailure,
				Source:    "auth-api",
				Metadata:  jsonMeta(map[string]string{"username": in.Username, "client_ip": middleware.ClientIP(r.Context())}),
			})
			respond.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password")
			return
		}
		respond.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "login failed")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    result.SessionID,
		Path:     "/",
		Expires:  result.SessionExpiresAt,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	h.logEvent(r, result.AccountID, "login", "session", "")
	h.emit(r, &telemetrydomain.SecurityEvent{
		AccountID: &result.AccountID,
		SessionID: &result.SessionID,
		EventType: telemetrydomain.EventLoginSuccess,
		Source:    "auth-api",
	})

	respond.JSON(w, http.StatusOK, tokenPairBody{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		TokenType:    "bearer",
		ExpiresIn:    expiresIn(result.ExpiresAt),
		Scope:        strings.Join(result.Scopes, " "),
	})
}

// me resolves the caller from a Bearer access token or the session cookie, in
// that order. No credential at all answers 403; a credential that fails
// validation answers 401.
func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	sessionID := ""
	if identity, ok := middleware.IdentityFromContext(r.Context()); ok {
		if identity.SessionID == "" {
			respond.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "token carries no session")
			return
		}
		sessionID = identity.SessionID
	} else if middleware.BadCredentials(r.Context()) {
		respond.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "invalid or expired access token")
		return
	} else if cookie, err := r.Cookie(h.cookieName); err == nil {
		sessionID = cookie.Value
	}

	account, err := h.auth.CurrentUser(r.Context(), sessionID)
	switch {
	case errors.Is(err, service.ErrNoSession):
		respond.Error(w, http.StatusForbidden, "FORBIDDEN", "authentication required")
		return
	case errors.Is(err, service.ErrSessionRevoked):
		respond.Error(w, http.StatusUnauthorized, "SESSION_EXPIRED", "session is expired or revoked")
		return
	case err != nil:
		respond.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "lookup failed")
		return
	}

	respond.JSON(w, http.StatusOK, accountToBody(account))
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if in.RefreshToken == "" {
		respond.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Refresh token is required")
		return
	}

	pair, err := h.rotation.Refresh(r.Context(), in.RefreshToken)
	if err != nil {
		if errors.Is(err, tokensvc.ErrTokenReused) {
			h.logEvent(r, "", "refresh_reuse", "token", "")
			h.emit(r, &telemetrydomain.SecurityEvent{
				EventType: telemetrydomain.EventRefreshReuse,
				Source:    "auth-api",
				Metadata:  jsonMeta(map[string]string{"client_ip": middleware.ClientIP(r.Context())}),
			})
			respond.Error(w, http.StatusUnauthorized, "TOKEN_REUSED", "Token reuse detected; session revoked")
			return
		}
		if errors.Is(err, tokensvc.ErrInvalidToken) {
			respond.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired refresh token")
			return
		}
		respond.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "refresh failed")
		return
	}

	h.logEvent(r, pair.AccountID, "refresh", "token", "")
	respond.JSON(w, http.StatusOK, tokenPairBody{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
		ExpiresIn:    expiresIn(pair.AccessExpiresAt),
		Scope:        strings.Join(pair.Scopes, " "),
	})
}

// logout revokes the caller's session and every refresh token in its lineage.
// Idempotent: repeated and unauthenticated calls still answer 200.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	sessionID := ""
	accountID := ""
	if cookie, err := r.Cookie(h.cookieName); err == nil {
		sessionID = cookie.Value
	}
	if identity, ok := middleware.IdentityFromContext(r.Context()); ok {
		accountID = identity.Subject
		if sessionID == "" {
			sessionID = identity.SessionID
		}
	}

	if err := h.auth.Logout(r.Context(), sessionID); err != nil {
		respond.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "logout failed")
		return
	}

	// Expire the session cookie regardless of whether a session was found.
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	if sessionID != "" {
		h.logEvent(r, accountID, "logout", "session", "")
		event := &telemetrydomain.SecurityEvent{
			SessionID: &sessionID,
			EventType: telemetrydomain.EventSessionRevoked,
			Source:    "auth-api",
		}
		if accountID != "" {
			event.AccountID = &accountID
		}
		h.emit(r, event)
	}

	respond.JSON(w, http.StatusOK, map[string]bool{"logged_out": true})
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

func accountToBody(a *accountdomain.Account) accountBody {
	return accountBody{ID: a.ID, Username: a.Username, Email: a.Email, CreatedAt: a.CreatedAt}
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
