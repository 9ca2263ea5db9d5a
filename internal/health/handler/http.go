// Package handler serves the health probe for load balancers and
// orchestration.
package handler

import (
	"context"
	"net/http"
	"time"

	"auth-control-plane/internal/server/respond"
)

// Check reports the health of one dependency. A nil error is healthy.
type Check func(ctx context.Context) error

// checkTimeout bounds the whole probe so a wedged dependency cannot hang
// the caller.
const checkTimeout = 5 * time.Second

// Handler serves GET /healthz, running every registered dependency check.
type Handler struct {
	checks map[string]Check
}

// NewHandler returns a health handler with no checks registered.
func NewHandler() *Handler {
	return &Handler{checks: make(map[string]Check)}
}

// AddCheck registers a named dependency check. Nil checks are ignored, so
// callers can pass optional dependencies straight through.
func (h *Handler) AddCheck(name string, check Check) {
	if check == nil {
		return
	}
	h.checks[name] = check
}

// Healthz answers 200 with per-check detail when every dependency is
// healthy, 503 otherwise.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	checks := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	body := map[string]any{"status": status}
	if len(checks) > 0 {
		body["checks"] = checks
	}
	respond.JSON(w, code, body)
}
