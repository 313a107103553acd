package models

import "time"

// Snapshot is one fetched payload for an integration, keyed by the resource
// collection it carries ("boards", "events", "event_types", "files", ...).
// Rows are append-only; readers take the most recent per integration.
type Snapshot struct {
	ID            string `gorm:"primaryKey"` // UUID
	IntegrationID string `gorm:"index;not null"`
	UserID        string `gorm:"index;not null"`
	DataType      string `gorm:"not null"`
	Data          string `gorm:"type:text"` // provider-specific JSON
	CreatedAt     time.Time `gorm:"index"`
}
