package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pulseboard/pulseboard/internal/connector"
	"github.com/pulseboard/pulseboard/internal/db/models"
	"github.com/pulseboard/pulseboard/internal/integrations"
)

// integrationView is the wire shape of a registry row, with the stored
// metrics JSON decoded for display.
type integrationView struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Provider     string                 `json:"provider"`
	Category     string                 `json:"category"`
	Status       string                 `json:"status"`
	HasData      bool                   `json:"has_data"`
	LastSync     *time.Time             `json:"last_sync,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metrics      map[string]interface{} `json:"metrics,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

func viewOf(row models.Integration) integrationView {
	view := integrationView{
		ID:           row.ID,
		Name:         row.Name,
		Provider:     row.Provider,
		Category:     row.Category,
		Status:       row.Status,
		HasData:      row.HasData,
		LastSync:     row.LastSync,
		ErrorMessage: row.ErrorMessage,
		CreatedAt:    row.CreatedAt,
	}
	if row.Metrics != "" {
		_ = json.Unmarshal([]byte(row.Metrics), &view.Metrics)
	}
	return view
}

// IntegrationsHandler lists the user's dashboard-visible integrations.
func IntegrationsHandler(svc *integrations.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.List(r.Context())
		if err != nil {
			serviceError(w, err)
			return
		}
		views := make([]integrationView, 0, len(rows))
		for _, row := range rows {
			views = append(views, viewOf(row))
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"integrations": views,
		})
	}
}

// RealTimeDataHandler returns the latest cached payload per provider.
func RealTimeDataHandler(svc *integrations.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := svc.RealTimeData(r.Context())
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"data": data,
		})
	}
}

// ConnectTrelloHandler connects Trello from an API key + user token pair.
func ConnectTrelloHandler(svc *integrations.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			APIKey string `json:"api_key"`
			Token  string `json:"token"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if req.APIKey == "" || req.Token == "" {
			writeError(w, http.StatusBadRequest, "api_key and token are required", "invalid_request_error")
			return
		}
		connect(w, r, svc, connector.ProviderTrello, connector.Credentials{
			models.CredentialAPIKey:      req.APIKey,
			models.CredentialAccessToken: req.Token,
		}, nil)
	}
}

// ConnectGoogleCalendarHandler connects Google Calendar from an OAuth
// access token obtained by the UI.
func ConnectGoogleCalendarHandler(svc *integrations.Service) http.HandlerFunc {
	return accessTokenConnect(svc, connector.ProviderGoogleCalendar)
}

// ConnectGoogleDriveHandler connects Google Drive from an OAuth access
// token obtained by the UI.
func ConnectGoogleDriveHandler(svc *integrations.Service) http.HandlerFunc {
	return accessTokenConnect(svc, connector.ProviderGoogleDrive)
}

// ConnectCalendlyHandler connects Calendly from a personal access token.
// The PKCE flow under /api/oauth/calendly is the alternative entry point.
func ConnectCalendlyHandler(svc *integrations.Service) http.HandlerFunc {
	return accessTokenConnect(svc, connector.ProviderCalendly)
}

func accessTokenConnect(svc *integrations.Service, p connector.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			AccessToken string `json:"access_token"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if req.AccessToken == "" {
			writeError(w, http.StatusBadRequest, "access_token is required", "invalid_request_error")
			return
		}
		connect(w, r, svc, p, connector.Credentials{
			models.CredentialAccessToken: req.AccessToken,
		}, nil)
	}
}

// ConnectAIHandler connects an OpenAI or Claude integration from an API
// key and model name.
func ConnectAIHandler(svc *integrations.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Provider string `json:"provider"`
			APIKey   string `json:"api_key"`
			Model    string `json:"model"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		p := connector.Provider(req.Provider)
		if p != connector.ProviderOpenAI && p != connector.ProviderClaude {
			writeError(w, http.StatusBadRequest, "provider must be openai or claude", "invalid_request_error")
			return
		}
		if req.APIKey == "" || req.Model == "" {
			writeError(w, http.StatusBadRequest, "api_key and model are required", "invalid_request_error")
			return
		}
		connect(w, r, svc, p, connector.Credentials{
			models.CredentialAPIKey: req.APIKey,
			models.CredentialModel:  req.Model,
		}, nil)
	}
}

// connect runs the shared connect pipeline and renders the outcome. A row
// with status error is still a 200: the attempt is recorded and the reason
// is in the body.
func connect(w http.ResponseWriter, r *http.Request, svc *integrations.Service, p connector.Provider, creds connector.Credentials, expiries map[string]time.Time) {
	integration, err := svc.Connect(r.Context(), p, creds, expiries)
	if err != nil && integration == nil {
		serviceError(w, err)
		return
	}
	if err != nil {
		log.Printf("⚠️ Connect %s persisted with degraded outcome: %v", p, err)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"integration": viewOf(*integration),
	})
}

// RefreshIntegrationHandler re-syncs one integration.
func RefreshIntegrationHandler(svc *integrations.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		integration, err := svc.Refresh(r.Context(), id)
		if err != nil && integration == nil {
			serviceError(w, err)
			return
		}
		if err != nil {
			log.Printf("⚠️ Refresh %s persisted with degraded outcome: %v", id, err)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"integration": viewOf(*integration),
		})
	}
}

// DisconnectIntegrationHandler removes an integration and everything
// derived from it.
func DisconnectIntegrationHandler(svc *integrations.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := svc.Disconnect(r.Context(), id); err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"disconnected": true,
		})
	}
}
