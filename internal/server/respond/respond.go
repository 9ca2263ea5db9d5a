// Package respond writes the JSON response envelopes shared by all HTTP handlers.
package respond

import (
	"encoding/json"
	"log"
	"net/http"
)

// APIError is the structured error body for the /auth and /api routes.
type APIError struct {
	Code    string `json:"error_code"`
	Message string `json:"error_message"`
}

// OAuth2Error is the RFC 6749 error body for the /oauth2 routes.
type OAuth2Error struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// JSON writes v as a JSON response with the given status. A nil v writes only the status.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write json: %v", err)
	}
}

// Error writes a structured error response.
func Error(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, APIError{Code: code, Message: message})
}

// OAuthError writes an RFC 6749 error response with token-endpoint cache headers.
func OAuthError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	JSON(w, status, OAuth2Error{Error: code, Description: description})
}
