package handlers

import (
	"net/http"

	"github.com/pulseboard/pulseboard/internal/version"
)

// HealthHandler reports liveness and build info. Unauthenticated.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "ok",
			"version": version.Version,
			"commit":  version.Commit,
		})
	}
}
