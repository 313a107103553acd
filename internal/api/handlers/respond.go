// Package handlers implements the dashboard HTTP API. Every handler is a
// closure over its dependencies returning an http.HandlerFunc.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/pulseboard/pulseboard/internal/integrations"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, errType string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"type":    errType,
		},
	})
}

// serviceError maps orchestrator sentinels onto HTTP statuses. Anything
// unclassified is a 500 with a generic body; details stay in the log.
func serviceError(w http.ResponseWriter, err error) {
	switch err {
	case integrations.ErrUnauthenticated:
		writeError(w, http.StatusUnauthorized, "Authentication required", "authentication_error")
	case integrations.ErrAlreadyConnected:
		writeError(w, http.StatusConflict, "This provider is already connected. Disconnect it first to add a new connection.", "already_connected")
	case integrations.ErrNotFound:
		writeError(w, http.StatusNotFound, "Integration not found", "not_found")
	case integrations.ErrNoAIIntegration:
		writeError(w, http.StatusBadRequest, "No AI integration connected. Connect OpenAI or Claude first.", "invalid_request_error")
	default:
		writeError(w, http.StatusInternalServerError, "Internal server error", "internal_error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, into interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", "invalid_request_error")
		return false
	}
	return true
}
