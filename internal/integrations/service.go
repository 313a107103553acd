// Package integrations owns the connect → fetch → persist pipeline that
// mediates between UI actions and the provider connectors, the credential
// store, the durable registry and the realtime cache.
package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pulseboard/pulseboard/internal/auth"
	"github.com/pulseboard/pulseboard/internal/connector"
	"github.com/pulseboard/pulseboard/internal/db/models"
	"github.com/pulseboard/pulseboard/internal/secrets"
	"gorm.io/gorm"
)

// TokenRefresher renews an OAuth access token from a refresh token. Wired
// for Calendly; nil when the OAuth client is not configured.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (access, newRefresh string, expiry time.Time, err error)
}

// Service is the connection orchestrator.
type Service struct {
	db        *gorm.DB
	secrets   *secrets.Store
	conn      *connector.Connector
	cache     *Cache
	notify    Notifier
	refresher TokenRefresher

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-integration, serializes refreshes
}

// NewService wires the orchestrator. notify may be nil (log sink is used);
// refresher may be nil (expired Calendly tokens then fail at the provider).
func NewService(db *gorm.DB, store *secrets.Store, conn *connector.Connector, cache *Cache, notify Notifier, refresher TokenRefresher) *Service {
	if notify == nil {
		notify = LogNotifier{}
	}
	return &Service{
		db:        db,
		secrets:   store,
		conn:      conn,
		cache:     cache,
		notify:    notify,
		refresher: refresher,
		locks:     make(map[string]*sync.Mutex),
	}
}

func (s *Service) lockFor(integrationID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[integrationID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[integrationID] = l
	}
	return l
}

// releaseLock drops a deleted integration's lock entry so the map does not
// grow with every integration the process has ever refreshed.
func (s *Service) releaseLock(integrationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, integrationID)
}

// Connect validates the supplied credentials against the provider and
// records the outcome. The integration row is written even when the
// provider rejects the credentials, so failed attempts stay visible with a
// reason; secrets are persisted only on success.
func (s *Service) Connect(ctx context.Context, p connector.Provider, creds connector.Credentials, expiries map[string]time.Time) (*models.Integration, error) {
	userID, ok := auth.UserID(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}
	info, ok := connector.Lookup(p)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", p)
	}

	var count int64
	err := s.db.Model(&models.Integration{}).
		Where("user_id = ? AND provider = ? AND status <> ?", userID, string(p), models.StatusDisconnected).
		Count(&count).Error
	if err != nil {
		return nil, fmt.Errorf("check existing connection: %w", err)
	}
	if count > 0 {
		s.notify.Failure(userID, "Already Connected",
			info.DisplayName+" is already connected. Disconnect first to add a new connection.")
		return nil, ErrAlreadyConnected
	}

	res := s.conn.Connect(ctx, p, creds)

	now := time.Now()
	integration := models.Integration{
		ID:       uuid.New().String(),
		UserID:   userID,
		Name:     info.DisplayName,
		Provider: string(p),
		Category: info.Category,
		HasData:  res.HasData,
		LastSync: &now,
		Metrics:  marshalMetrics(res.Metrics),
	}
	if res.OK {
		integration.Status = models.StatusConnected
	} else {
		integration.Status = models.StatusError
		integration.ErrorMessage = res.Reason
	}

	if err := s.db.Create(&integration).Error; err != nil {
		s.notify.Failure(userID, "Connection Failed", "Failed to save integration")
		return nil, fmt.Errorf("persist integration: %w", err)
	}

	if !res.OK {
		s.notify.Failure(userID, info.DisplayName+" Connection Failed", res.Reason)
		return &integration, nil
	}

	// Success path: credentials, snapshot and cache. A persistence failure
	// here downgrades the row to error rather than leaving half a record.
	if err := s.persistSuccess(userID, &integration, creds, expiries, res); err != nil {
		s.forceError(&integration, "Failed to save integration data")
		s.notify.Failure(userID, info.DisplayName+" Connection Failed", "Failed to save integration data")
		return &integration, err
	}

	s.notify.Success(userID, info.DisplayName+" Connected",
		fmt.Sprintf("Successfully connected to %s", info.DisplayName))
	return &integration, nil
}

// Refresh re-runs the pipeline for an existing integration using stored
// credentials. The row is never left at syncing: every exit path lands on
// connected or error.
func (s *Service) Refresh(ctx context.Context, integrationID string) (*models.Integration, error) {
	userID, ok := auth.UserID(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}

	lock := s.lockFor(integrationID)
	lock.Lock()
	defer lock.Unlock()

	integration, err := s.byID(userID, integrationID)
	if err != nil {
		return nil, err
	}
	info, _ := connector.Lookup(connector.Provider(integration.Provider))

	integration.Status = models.StatusSyncing
	if err := s.db.Save(integration).Error; err != nil {
		return nil, fmt.Errorf("mark syncing: %w", err)
	}

	stored, err := s.secrets.GetAll(integrationID)
	if err != nil {
		s.forceError(integration, "Failed to load credentials")
		return integration, fmt.Errorf("load credentials: %w", err)
	}
	creds := connector.Credentials(stored)

	// AI integrations get a plain status touch instead of a re-fetch: their
	// connection test is a billed completion request, so refresh must not
	// re-issue it. Same for rows whose stored credentials don't cover the
	// connector's requirements.
	if missing := creds.Missing(info.Required); integration.Category == "ai" || len(missing) > 0 {
		now := time.Now()
		integration.Status = models.StatusConnected
		integration.ErrorMessage = ""
		integration.LastSync = &now
		if err := s.db.Save(integration).Error; err != nil {
			s.forceError(integration, "Failed to update status")
			return integration, fmt.Errorf("touch status: %w", err)
		}
		s.notify.Success(userID, info.DisplayName+" Refreshed", "Connection is still valid")
		return integration, nil
	}

	if connector.Provider(integration.Provider) == connector.ProviderCalendly {
		creds = s.maybeRefreshOAuthToken(ctx, integrationID, userID, creds)
	}

	res := s.conn.Connect(ctx, connector.Provider(integration.Provider), creds)

	now := time.Now()
	integration.LastSync = &now
	if !res.OK {
		integration.Status = models.StatusError
		integration.ErrorMessage = res.Reason
		if err := s.db.Save(integration).Error; err != nil {
			s.forceError(integration, res.Reason)
			return integration, fmt.Errorf("persist refresh outcome: %w", err)
		}
		s.notify.Failure(userID, info.DisplayName+" Sync Failed", res.Reason)
		return integration, nil
	}

	integration.Status = models.StatusConnected
	integration.ErrorMessage = ""
	integration.HasData = res.HasData
	integration.Metrics = marshalMetrics(res.Metrics)
	if err := s.db.Save(integration).Error; err != nil {
		s.forceError(integration, "Failed to save integration")
		return integration, fmt.Errorf("persist refresh outcome: %w", err)
	}
	if err := s.storeSnapshot(userID, integration, res); err != nil {
		s.forceError(integration, "Failed to save integration data")
		return integration, err
	}

	s.notify.Success(userID, info.DisplayName+" Refreshed", "Data synchronized")
	return integration, nil
}

// Disconnect deletes the integration row, cascades its credentials and
// snapshots, and evicts the cache entry. No connector call is made.
func (s *Service) Disconnect(ctx context.Context, integrationID string) error {
	userID, ok := auth.UserID(ctx)
	if !ok {
		return ErrUnauthenticated
	}

	integration, err := s.byID(userID, integrationID)
	if err != nil {
		return err
	}

	if err := s.secrets.DeleteAll(integrationID); err != nil {
		return fmt.Errorf("delete credentials: %w", err)
	}
	if err := s.db.Where("integration_id = ?", integrationID).Delete(&models.Snapshot{}).Error; err != nil {
		return fmt.Errorf("delete snapshots: %w", err)
	}
	if err := s.db.Delete(&models.Integration{}, "id = ?", integrationID).Error; err != nil {
		return fmt.Errorf("delete integration: %w", err)
	}
	s.cache.Remove(userID, connector.Provider(integration.Provider))
	s.releaseLock(integrationID)

	s.notify.Success(userID, "Integration Disconnected", integration.Name+" has been removed")
	return nil
}

// List returns the user's integrations for the dashboard: rows that carry
// data, failed rows (so the reason stays visible), and AI connections,
// which have no data concept.
func (s *Service) List(ctx context.Context) ([]models.Integration, error) {
	userID, ok := auth.UserID(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}

	var all []models.Integration
	err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&all).Error
	if err != nil {
		return nil, fmt.Errorf("list integrations: %w", err)
	}

	out := make([]models.Integration, 0, len(all))
	for _, integration := range all {
		if integration.HasData || integration.Status == models.StatusError || integration.Category == "ai" {
			out = append(out, integration)
		}
	}
	return out, nil
}

// RealTimeData returns the user's provider → latest payload map.
func (s *Service) RealTimeData(ctx context.Context) (map[string]json.RawMessage, error) {
	userID, ok := auth.UserID(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}

	cached := s.cache.All(userID)
	out := make(map[string]json.RawMessage, len(cached))
	for p, payload := range cached {
		out[string(p)] = payload
	}
	return out, nil
}

// Ask runs a natural-language prompt through the user's connected AI
// integration and returns the reply with the provider and model that
// produced it.
func (s *Service) Ask(ctx context.Context, question string) (answer, provider, model string, err error) {
	userID, ok := auth.UserID(ctx)
	if !ok {
		return "", "", "", ErrUnauthenticated
	}

	var integration models.Integration
	dbErr := s.db.Where("user_id = ? AND category = ? AND status = ?", userID, "ai", models.StatusConnected).
		Order("created_at DESC").First(&integration).Error
	if dbErr == gorm.ErrRecordNotFound {
		return "", "", "", ErrNoAIIntegration
	}
	if dbErr != nil {
		return "", "", "", fmt.Errorf("find AI integration: %w", dbErr)
	}

	stored, err := s.secrets.GetAll(integration.ID)
	if err != nil {
		return "", "", "", fmt.Errorf("load credentials: %w", err)
	}
	creds := connector.Credentials(stored)

	p := connector.Provider(integration.Provider)
	answer, err = s.conn.Complete(ctx, p, creds, question, 512)
	if err != nil {
		return "", "", "", err
	}
	return answer, integration.Provider, creds["model"], nil
}

// WarmCache rebuilds the realtime cache from the snapshot log.
func (s *Service) WarmCache() {
	s.cache.Warm(s.db)
}

func (s *Service) byID(userID, integrationID string) (*models.Integration, error) {
	var integration models.Integration
	err := s.db.Where("id = ? AND user_id = ?", integrationID, userID).First(&integration).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load integration: %w", err)
	}
	return &integration, nil
}

func (s *Service) persistSuccess(userID string, integration *models.Integration, creds connector.Credentials, expiries map[string]time.Time, res connector.Result) error {
	for credType, value := range creds {
		var expiresAt *time.Time
		if t, ok := expiries[credType]; ok {
			expiry := t
			expiresAt = &expiry
		}
		if err := s.secrets.Put(userID, integration.ID, credType, value, expiresAt); err != nil {
			return err
		}
	}
	return s.storeSnapshot(userID, integration, res)
}

func (s *Service) storeSnapshot(userID string, integration *models.Integration, res connector.Result) error {
	if res.Payload == nil || res.DataType == "" {
		return nil
	}
	data, err := json.Marshal(res.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	snap := models.Snapshot{
		ID:            uuid.New().String(),
		IntegrationID: integration.ID,
		UserID:        userID,
		DataType:      res.DataType,
		Data:          string(data),
	}
	if err := s.db.Create(&snap).Error; err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}
	s.cache.Set(userID, connector.Provider(integration.Provider), data)
	return nil
}

// forceError is the last-resort exit: whatever went wrong, the row must not
// stay at syncing. The save error, if any, is only logged.
func (s *Service) forceError(integration *models.Integration, message string) {
	now := time.Now()
	integration.Status = models.StatusError
	integration.ErrorMessage = message
	integration.LastSync = &now
	if err := s.db.Save(integration).Error; err != nil {
		log.Printf("⚠️ Could not persist error state for %s: %v", integration.ID, err)
	}
}

// maybeRefreshOAuthToken renews the stored Calendly access token when it is
// expired or about to expire and a refresh token is available. Failure to
// refresh is non-fatal here: the connector call will surface the real error.
func (s *Service) maybeRefreshOAuthToken(ctx context.Context, integrationID, userID string, creds connector.Credentials) connector.Credentials {
	if s.refresher == nil || creds["refresh_token"] == "" {
		return creds
	}
	expiresAt, ok := s.secrets.ExpiresAt(integrationID, models.CredentialAccessToken)
	if !ok || expiresAt == nil || expiresAt.After(time.Now().Add(time.Minute)) {
		return creds
	}

	access, newRefresh, expiry, err := s.refresher.RefreshToken(ctx, creds["refresh_token"])
	if err != nil {
		log.Printf("⚠️ Calendly token refresh failed for %s: %v", integrationID, err)
		return creds
	}

	if err := s.secrets.Put(userID, integrationID, models.CredentialAccessToken, access, &expiry); err != nil {
		log.Printf("⚠️ Could not persist rotated access token: %v", err)
	}
	creds["access_token"] = access
	if newRefresh != "" && newRefresh != creds["refresh_token"] {
		if err := s.secrets.Put(userID, integrationID, models.CredentialRefreshToken, newRefresh, nil); err != nil {
			log.Printf("⚠️ Could not persist rotated refresh token: %v", err)
		}
		creds["refresh_token"] = newRefresh
	}
	return creds
}

func marshalMetrics(metrics map[string]any) string {
	if len(metrics) == 0 {
		return ""
	}
	data, err := json.Marshal(metrics)
	if err != nil {
		return ""
	}
	return string(data)
}
