// Package server assembles the HTTP API: router, middleware chain, and
// serve/shutdown lifecycle.
package server

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	auditrepo "auth-control-plane/internal/audit/repository"
	authhandler "auth-control-plane/internal/auth/handler"
	healthhandler "auth-control-plane/internal/health/handler"
	oauthhandler "auth-control-plane/internal/oauth/handler"
	resourcehandler "auth-control-plane/internal/resource/handler"
	"auth-control-plane/internal/security"
	"auth-control-plane/internal/server/middleware"
	"auth-control-plane/internal/telemetry"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Deps holds the wired handlers and cross-cutting dependencies for the HTTP API.
type Deps struct {
	// Auth serves /auth. Required.
	Auth *authhandler.Handler
	// OAuth serves /oauth2. Required.
	OAuth *oauthhandler.Handler
	// Resource serves /api/v1. Required.
	Resource *resourcehandler.Handler
	// Health serves /healthz. Required.
	Health *healthhandler.Handler
	// Tokens validates Bearer tokens for the authenticate middleware. Required.
	Tokens *security.TokenProvider
	// AuditRepo receives the audit trail for authenticated API requests. If nil, nothing is audited by the middleware.
	AuditRepo auditrepo.Repository
	// Emitter receives rate-limit security events. Optional.
	Emitter telemetry.EventEmitter
	// RateLimiter guards all non-health routes. If nil, no rate limiting.
	RateLimiter *middleware.RateLimiter
	// AllowedOrigins configures CORS; empty allows any origin.
	AllowedOrigins []string
}

// auditSkipPaths lists routes whose handlers write their own audit entries,
// so the generic middleware must not double-log them.
var auditSkipPaths = map[string]bool{
	"/auth/register":     true,
	"/auth/login":        true,
	"/auth/refresh":      true,
	"/auth/logout":       true,
	"/oauth2/token":      true,
	"/oauth2/introspect": true,
}

// NewRouter assembles the chi router with the full middleware chain and all
// mounted route groups.
func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.ResolveClientIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(deps.AllowedOrigins))
	if deps.RateLimiter != nil {
		r.Use(deps.RateLimiter.Middleware(deps.Emitter))
	}
	r.Use(middleware.Authenticate(deps.Tokens))
	r.Use(middleware.Audit(deps.AuditRepo, auditSkipPaths))

	r.Get("/healthz", deps.Health.Healthz)
	r.Route("/auth", deps.Auth.Mount)
	r.Route("/oauth2", deps.OAuth.Mount)
	r.Route("/api/v1", deps.Resource.Mount)
	return r
}

// Serve starts the HTTP server on addr and blocks until ctx is canceled,
// then drains connections gracefully. The handler is wrapped with otelhttp
// so every request carries a span.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		BaseContext:       func(net.Listener) context.Context { return ctx },
		Addr:              addr,
		Handler:           otelhttp.NewHandler(handler, "auth-control-plane"),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("server: HTTP listening on %s", addr)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("server: shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Println("server: stopped")
	return nil
}
