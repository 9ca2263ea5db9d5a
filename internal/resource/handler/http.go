// Package handler serves the resource API: one public route and three
// scope-guarded routes that exercise enforcement end to end.
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"auth-control-plane/internal/policy/engine"
	"auth-control-plane/internal/server/middleware"
	"auth-control-plane/internal/server/respond"
)

// Scope requirements per secure route.
const (
	ScopeRead  = "read"
	ScopeWrite = "write"
	ScopeAdmin = "admin"
)

// Handler serves the /api/v1 routes.
type Handler struct {
	evaluator engine.Evaluator
}

// NewHandler returns a resource HTTP handler backed by the given scope
// evaluator.
func NewHandler(evaluator engine.Evaluator) *Handler {
	return &Handler{evaluator: evaluator}
}

// Mount registers the resource routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/data", h.publicData)
	r.Route("/secure", func(r chi.Router) {
		r.With(middleware.RequireScope(h.evaluator, ScopeRead)).Get("/data", h.secureData)
		r.With(middleware.RequireScope(h.evaluator, ScopeWrite)).Get("/export", h.secureExport)
		r.With(middleware.RequireScope(h.evaluator, ScopeAdmin)).Get("/admin", h.secureAdmin)
	})
}

func (h *Handler) publicData(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]any{
		"resource":    "public",
		"server_time": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) secureData(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFromContext(r.Context())
	respond.JSON(w, http.StatusOK, map[string]any{
		"resource": "data",
		"subject":  identity.Subject,
		"scopes":   identity.Scopes,
	})
}

func (h *Handler) secureExport(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFromContext(r.Context())
	respond.JSON(w, http.StatusOK, map[string]any{
		"resource": "export",
		"subject":  identity.Subject,
		"status":   "queued",
	})
}

func (h *Handler) secureAdmin(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFromContext(r.Context())
	respond.JSON(w, http.StatusOK, map[string]any{
		"resource": "admin",
		"subject":  identity.Subject,
		"scopes":   identity.Scopes,
	})
}
