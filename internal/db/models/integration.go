package models

import "time"

// Integration status values. Transitions:
// disconnected -> connecting -> {connected, error}
// connected/error -> syncing -> {connected, error}
// any -> disconnected (row deleted).
const (
	StatusConnected    = "connected"
	StatusSyncing      = "syncing"
	StatusError        = "error"
	StatusDisconnected = "disconnected"
)

// Integration is one user-configured external connection.
type Integration struct {
	ID           string `gorm:"primaryKey" json:"id"` // UUID
	UserID       string `gorm:"index;not null" json:"-"`
	Name         string `json:"name"`
	Provider     string `gorm:"index;not null" json:"provider"` // immutable after creation
	Category     string `json:"category"`                       // derived from provider
	Status       string `json:"status"`
	HasData      bool   `json:"has_data"`
	LastSync     *time.Time `json:"last_sync,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Metrics      string     `gorm:"type:text" json:"-"` // JSON map for display
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
