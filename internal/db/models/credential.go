package models

import "time"

// Credential types. At most one row exists per (integration, type).
const (
	CredentialAPIKey       = "api_key"
	CredentialAccessToken  = "access_token"
	CredentialRefreshToken = "refresh_token"
	CredentialClientID     = "client_id"
	CredentialClientSecret = "client_secret"
	CredentialModel        = "model" // AI integrations persist the model name alongside the key
)

// Credential is one encrypted secret owned by an Integration. Value holds
// base64(nonce || AES-256-GCM ciphertext); plaintext never touches the
// database or the logs.
type Credential struct {
	ID            string `gorm:"primaryKey"` // UUID
	IntegrationID string `gorm:"uniqueIndex:idx_integration_type;not null"`
	UserID        string `gorm:"index;not null"`
	Type          string `gorm:"uniqueIndex:idx_integration_type;not null"`
	Value         string `gorm:"type:text;not null"`
	ExpiresAt     *time.Time // nil means non-expiring (static API key)
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
