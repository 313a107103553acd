package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/go-chi/chi/v5"
	"github.com/pulseboard/pulseboard/internal/auth"
	"github.com/pulseboard/pulseboard/internal/auth/calendly"
	"github.com/pulseboard/pulseboard/internal/connector"
	"github.com/pulseboard/pulseboard/internal/db"
	"github.com/pulseboard/pulseboard/internal/db/models"
	"github.com/pulseboard/pulseboard/internal/integrations"
	"github.com/pulseboard/pulseboard/internal/secrets"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type apiEnv struct {
	server *httptest.Server
	apiKey string
	db     *gorm.DB
}

func newAPIEnv(t *testing.T, baseURLs map[connector.Provider]string, oauth *calendly.OAuth) *apiEnv {
	t.Helper()
	database, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := database.AutoMigrate(
		&models.User{},
		&models.Integration{},
		&models.Credential{},
		&models.Snapshot{},
		&models.OAuthState{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	user, err := db.EnsureBootstrapUser(database)
	if err != nil {
		t.Fatalf("bootstrap user: %v", err)
	}

	enc, err := secrets.NewEncryptor("test-secret")
	if err != nil {
		t.Fatalf("encryptor: %v", err)
	}
	store := secrets.NewStore(database, enc)
	var refresher integrations.TokenRefresher
	if oauth != nil {
		refresher = oauth
	}
	svc := integrations.NewService(database, store, connector.New(baseURLs), integrations.NewCache(), nil, refresher)

	r := chi.NewRouter()
	r.Get("/healthz", HealthHandler())
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.APIKeyAuth(database))
		r.Get("/integrations", IntegrationsHandler(svc))
		r.Get("/integrations/data", RealTimeDataHandler(svc))
		r.Post("/integrations/trello", ConnectTrelloHandler(svc))
		r.Post("/integrations/google-calendar", ConnectGoogleCalendarHandler(svc))
		r.Post("/integrations/google-drive", ConnectGoogleDriveHandler(svc))
		r.Post("/integrations/calendly", ConnectCalendlyHandler(svc))
		r.Post("/integrations/ai", ConnectAIHandler(svc))
		r.Post("/integrations/{id}/refresh", RefreshIntegrationHandler(svc))
		r.Delete("/integrations/{id}", DisconnectIntegrationHandler(svc))
		r.Post("/ask", AskHandler(svc))
		r.Post("/oauth/calendly/init", CalendlyOAuthInitHandler(oauth))
		r.Post("/oauth/calendly/callback", CalendlyOAuthCallbackHandler(oauth, svc))
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return &apiEnv{server: server, apiKey: user.APIKey, db: database}
}

func (e *apiEnv) request(t *testing.T, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func fakeCalendar(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []map[string]interface{}{{"id": "evt-1"}},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestHealthzIsPublic(t *testing.T) {
	env := newAPIEnv(t, nil, nil)
	resp, err := http.Get(env.server.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestAPIRequiresKey(t *testing.T) {
	env := newAPIEnv(t, nil, nil)
	resp, err := http.Get(env.server.URL + "/api/integrations")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestAPIAcceptsXAPIKeyHeader(t *testing.T) {
	env := newAPIEnv(t, nil, nil)
	req, _ := http.NewRequest(http.MethodGet, env.server.URL+"/api/integrations", nil)
	req.Header.Set("x-api-key", env.apiKey)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestConnectCalendarEndToEnd(t *testing.T) {
	provider := fakeCalendar(t)
	env := newAPIEnv(t, map[connector.Provider]string{connector.ProviderGoogleCalendar: provider.URL}, nil)

	resp, body := env.request(t, http.MethodPost, "/api/integrations/google-calendar",
		map[string]string{"access_token": "tok"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}
	integration, ok := body["integration"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing integration in body: %v", body)
	}
	if integration["status"] != "connected" {
		t.Errorf("status = %v, want connected", integration["status"])
	}
	if integration["provider"] != "google-calendar" {
		t.Errorf("provider = %v", integration["provider"])
	}

	// Duplicate connect is a conflict.
	resp, _ = env.request(t, http.MethodPost, "/api/integrations/google-calendar",
		map[string]string{"access_token": "tok"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", resp.StatusCode)
	}

	// The connected row shows up in the listing and its payload in data.
	resp, body = env.request(t, http.MethodGet, "/api/integrations", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	rows, _ := body["integrations"].([]interface{})
	if len(rows) != 1 {
		t.Fatalf("listing rows = %d, want 1", len(rows))
	}

	_, body = env.request(t, http.MethodGet, "/api/integrations/data", nil)
	data, _ := body["data"].(map[string]interface{})
	if _, ok := data["google-calendar"]; !ok {
		t.Errorf("realtime data missing provider payload: %v", body)
	}
}

func TestConnectTrelloValidation(t *testing.T) {
	env := newAPIEnv(t, nil, nil)
	resp, _ := env.request(t, http.MethodPost, "/api/integrations/trello",
		map[string]string{"api_key": "only-key"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestConnectAIValidation(t *testing.T) {
	env := newAPIEnv(t, nil, nil)

	resp, _ := env.request(t, http.MethodPost, "/api/integrations/ai",
		map[string]string{"provider": "gemini", "api_key": "k", "model": "m"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown provider status = %d, want 400", resp.StatusCode)
	}

	resp, _ = env.request(t, http.MethodPost, "/api/integrations/ai",
		map[string]string{"provider": "openai", "api_key": "k"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing model status = %d, want 400", resp.StatusCode)
	}
}

func TestRefreshUnknownIntegration(t *testing.T) {
	env := newAPIEnv(t, nil, nil)
	resp, _ := env.request(t, http.MethodPost, "/api/integrations/no-such-id/refresh", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestDisconnectEndpoint(t *testing.T) {
	provider := fakeCalendar(t)
	env := newAPIEnv(t, map[connector.Provider]string{connector.ProviderGoogleCalendar: provider.URL}, nil)

	_, body := env.request(t, http.MethodPost, "/api/integrations/google-calendar",
		map[string]string{"access_token": "tok"})
	integration := body["integration"].(map[string]interface{})
	id := integration["id"].(string)

	resp, _ := env.request(t, http.MethodDelete, "/api/integrations/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("disconnect status = %d", resp.StatusCode)
	}

	resp, _ = env.request(t, http.MethodDelete, "/api/integrations/"+id, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second disconnect status = %d, want 404", resp.StatusCode)
	}
}

func TestAskWithoutAIIntegration(t *testing.T) {
	env := newAPIEnv(t, nil, nil)
	resp, body := env.request(t, http.MethodPost, "/api/ask", map[string]string{"question": "hi"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, body = %v", resp.StatusCode, body)
	}
}

func TestOAuthEndpointsWhenNotConfigured(t *testing.T) {
	env := newAPIEnv(t, nil, nil)

	resp, _ := env.request(t, http.MethodPost, "/api/oauth/calendly/init",
		map[string]string{"redirect_uri": "https://app.example/cb"})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("init status = %d, want 503", resp.StatusCode)
	}

	resp, _ = env.request(t, http.MethodPost, "/api/oauth/calendly/callback",
		map[string]string{"code": "c", "state": "s"})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("callback status = %d, want 503", resp.StatusCode)
	}
}

func TestOAuthInitAndInvalidCallbackState(t *testing.T) {
	env := newAPIEnv(t, nil, nil)
	oauth := calendly.New(env.db, "client-id", "client-secret",
		"https://auth.calendly.com/oauth/authorize", "https://auth.calendly.com/oauth/token")

	// Rebuild the router with OAuth configured.
	env = newAPIEnvWithOAuth(t, env, oauth)

	resp, body := env.request(t, http.MethodPost, "/api/oauth/calendly/init",
		map[string]string{"redirect_uri": "https://app.example/cb"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("init status = %d, body = %v", resp.StatusCode, body)
	}
	if _, ok := body["authorization_url"].(string); !ok {
		t.Fatalf("init body incomplete: %v", body)
	}
	if _, ok := body["state"].(string); !ok {
		t.Fatalf("init body missing state: %v", body)
	}

	resp, _ = env.request(t, http.MethodPost, "/api/oauth/calendly/callback",
		map[string]string{"code": "c", "state": "never-issued"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad state status = %d, want 400", resp.StatusCode)
	}
}

func newAPIEnvWithOAuth(t *testing.T, base *apiEnv, oauth *calendly.OAuth) *apiEnv {
	t.Helper()
	enc, _ := secrets.NewEncryptor("test-secret")
	store := secrets.NewStore(base.db, enc)
	svc := integrations.NewService(base.db, store, connector.New(nil), integrations.NewCache(), nil, oauth)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.APIKeyAuth(base.db))
		r.Post("/oauth/calendly/init", CalendlyOAuthInitHandler(oauth))
		r.Post("/oauth/calendly/callback", CalendlyOAuthCallbackHandler(oauth, svc))
	})
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return &apiEnv{server: server, apiKey: base.apiKey, db: base.db}
}
