package handlers

import (
	"net/http"
	"time"

	"github.com/pulseboard/pulseboard/internal/auth"
	"github.com/pulseboard/pulseboard/internal/auth/calendly"
	"github.com/pulseboard/pulseboard/internal/connector"
	"github.com/pulseboard/pulseboard/internal/db/models"
	"github.com/pulseboard/pulseboard/internal/integrations"
)

// CalendlyOAuthInitHandler starts the PKCE flow and hands the UI the
// authorization URL to redirect the browser to.
func CalendlyOAuthInitHandler(oauth *calendly.OAuth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if oauth == nil {
			writeError(w, http.StatusServiceUnavailable, "Calendly OAuth is not configured", "not_configured")
			return
		}
		userID, ok := auth.UserID(r.Context())
		if !ok {
			serviceError(w, integrations.ErrUnauthenticated)
			return
		}

		var req struct {
			RedirectURI string `json:"redirect_uri"`
			Scope       string `json:"scope"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if req.RedirectURI == "" {
			writeError(w, http.StatusBadRequest, "redirect_uri is required", "invalid_request_error")
			return
		}

		authorizationURL, state, err := oauth.Initiate(userID, req.RedirectURI, req.Scope)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to start OAuth flow", "internal_error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"authorization_url": authorizationURL,
			"state":             state,
		})
	}
}

// CalendlyOAuthCallbackHandler redeems the authorization code the UI got
// back from Calendly and connects the integration with the issued tokens.
func CalendlyOAuthCallbackHandler(oauth *calendly.OAuth, svc *integrations.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if oauth == nil {
			writeError(w, http.StatusServiceUnavailable, "Calendly OAuth is not configured", "not_configured")
			return
		}
		userID, ok := auth.UserID(r.Context())
		if !ok {
			serviceError(w, integrations.ErrUnauthenticated)
			return
		}

		var req struct {
			Code  string `json:"code"`
			State string `json:"state"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Code == "" || req.State == "" {
			writeError(w, http.StatusBadRequest, "code and state are required", "invalid_request_error")
			return
		}

		token, err := oauth.Exchange(r.Context(), userID, req.State, req.Code)
		if err == calendly.ErrInvalidState {
			writeError(w, http.StatusBadRequest, "Invalid or expired OAuth state", "invalid_request_error")
			return
		}
		if err != nil {
			writeError(w, http.StatusBadGateway, "Token exchange failed", "upstream_error")
			return
		}

		creds := connector.Credentials{
			models.CredentialAccessToken: token.AccessToken,
		}
		expiries := map[string]time.Time{}
		if token.RefreshToken != "" {
			creds[models.CredentialRefreshToken] = token.RefreshToken
		}
		if !token.Expiry.IsZero() {
			expiries[models.CredentialAccessToken] = token.Expiry
		}
		connect(w, r, svc, connector.ProviderCalendly, creds, expiries)
	}
}
