package handlers

import (
	"net/http"
	"strings"

	"github.com/pulseboard/pulseboard/internal/integrations"
)

// AskHandler runs a natural-language question through the user's connected
// AI integration.
func AskHandler(svc *integrations.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Question string `json:"question"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Question) == "" {
			writeError(w, http.StatusBadRequest, "question is required", "invalid_request_error")
			return
		}

		answer, provider, model, err := svc.Ask(r.Context(), req.Question)
		if err == integrations.ErrNoAIIntegration || err == integrations.ErrUnauthenticated {
			serviceError(w, err)
			return
		}
		if err != nil {
			// Connector reasons are already human-readable.
			writeError(w, http.StatusBadGateway, err.Error(), "upstream_error")
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"answer":   answer,
			"provider": provider,
			"model":    model,
		})
	}
}
