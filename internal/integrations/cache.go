package integrations

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/pulseboard/pulseboard/internal/connector"
	"github.com/pulseboard/pulseboard/internal/db/models"
	"gorm.io/gorm"
)

// Cache holds the most recently fetched payload per (user, provider). It is
// derived state: mutated only on successful syncs, dropped on disconnect,
// and rebuildable from the snapshot log at any time. The durable registry
// stays the source of truth.
type Cache struct {
	mu   sync.RWMutex
	data map[string]map[connector.Provider]json.RawMessage
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{data: make(map[string]map[connector.Provider]json.RawMessage)}
}

// Set stores the latest payload for a user's provider.
func (c *Cache) Set(userID string, p connector.Provider, payload json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data[userID] == nil {
		c.data[userID] = make(map[connector.Provider]json.RawMessage)
	}
	c.data[userID][p] = payload
}

// Remove drops a user's provider entry, if present.
func (c *Cache) Remove(userID string, p connector.Provider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entries, ok := c.data[userID]; ok {
		delete(entries, p)
	}
}

// Get returns a user's payload for one provider.
func (c *Cache) Get(userID string, p connector.Provider) (json.RawMessage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	payload, ok := c.data[userID][p]
	return payload, ok
}

// All returns a copy of a user's provider → payload map.
func (c *Cache) All(userID string) map[connector.Provider]json.RawMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[connector.Provider]json.RawMessage, len(c.data[userID]))
	for p, payload := range c.data[userID] {
		out[p] = payload
	}
	return out
}

// Warm rebuilds the cache from the most recent snapshot of every
// non-disconnected integration. Called once at startup.
func (c *Cache) Warm(db *gorm.DB) {
	var integrations []models.Integration
	if err := db.Where("status <> ?", models.StatusDisconnected).Find(&integrations).Error; err != nil {
		log.Printf("⚠️ Cache warm-up skipped: %v", err)
		return
	}

	warmed := 0
	for _, integration := range integrations {
		var snap models.Snapshot
		err := db.Where("integration_id = ?", integration.ID).
			Order("created_at DESC").First(&snap).Error
		if err != nil {
			continue
		}
		c.Set(integration.UserID, connector.Provider(integration.Provider), json.RawMessage(snap.Data))
		warmed++
	}
	if warmed > 0 {
		log.Printf("📦 Warmed realtime cache with %d snapshots", warmed)
	}
}
