package main

import (
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/pulseboard/pulseboard/internal/api/handlers"
	"github.com/pulseboard/pulseboard/internal/auth"
	"github.com/pulseboard/pulseboard/internal/auth/calendly"
	"github.com/pulseboard/pulseboard/internal/config"
	"github.com/pulseboard/pulseboard/internal/connector"
	"github.com/pulseboard/pulseboard/internal/db"
	"github.com/pulseboard/pulseboard/internal/integrations"
	"github.com/pulseboard/pulseboard/internal/logging"
	"github.com/pulseboard/pulseboard/internal/secrets"
	"github.com/pulseboard/pulseboard/internal/version"
)

func main() {
	cfg, err := config.Load(os.Getenv("PULSEBOARD_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Secrets.EncryptionKey == "" {
		log.Fatal("PULSEBOARD_ENCRYPTION_KEY is required")
	}

	// Initialize database
	database, err := db.InitDB(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	if _, err := db.EnsureBootstrapUser(database); err != nil {
		log.Fatalf("Failed to ensure bootstrap user: %v", err)
	}

	// Credential encryption
	enc, err := secrets.NewEncryptor(cfg.Secrets.EncryptionKey)
	if err != nil {
		log.Fatalf("Failed to initialize encryption: %v", err)
	}
	store := secrets.NewStore(database, enc)

	// Provider connector, with base URL overrides from config
	baseURLs := make(map[connector.Provider]string)
	for _, p := range connector.Providers() {
		if url := cfg.ProviderBaseURL(string(p)); url != "" {
			baseURLs[p] = url
		}
	}
	conn := connector.New(baseURLs)

	// Calendly OAuth (optional, enabled by client credentials)
	oauth := calendly.New(database, cfg.Calendly.ClientID, cfg.Calendly.ClientSecret,
		cfg.Calendly.AuthURL, cfg.Calendly.TokenURL)
	var refresher integrations.TokenRefresher
	if oauth != nil {
		refresher = oauth
		log.Printf("🔄 Calendly OAuth enabled")
	}

	// Orchestrator + realtime cache, warmed from the snapshot log
	svc := integrations.NewService(database, store, conn, integrations.NewCache(), nil, refresher)
	svc.WarmCache()

	// Create router
	r := chi.NewRouter()
	r.Use(logging.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	// Public routes
	r.Get("/healthz", handlers.HealthHandler())

	// Dashboard API (API key required)
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.APIKeyAuth(database))

		r.Get("/integrations", handlers.IntegrationsHandler(svc))
		r.Get("/integrations/data", handlers.RealTimeDataHandler(svc))

		r.Post("/integrations/trello", handlers.ConnectTrelloHandler(svc))
		r.Post("/integrations/google-calendar", handlers.ConnectGoogleCalendarHandler(svc))
		r.Post("/integrations/google-drive", handlers.ConnectGoogleDriveHandler(svc))
		r.Post("/integrations/calendly", handlers.ConnectCalendlyHandler(svc))
		r.Post("/integrations/ai", handlers.ConnectAIHandler(svc))

		r.Post("/integrations/{id}/refresh", handlers.RefreshIntegrationHandler(svc))
		r.Delete("/integrations/{id}", handlers.DisconnectIntegrationHandler(svc))

		r.Post("/ask", handlers.AskHandler(svc))

		r.Post("/oauth/calendly/init", handlers.CalendlyOAuthInitHandler(oauth))
		r.Post("/oauth/calendly/callback", handlers.CalendlyOAuthCallbackHandler(oauth, svc))
	})

	addr := cfg.Addr()
	log.Printf("🚀 pulseboard %s listening on %s", version.Version, addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
