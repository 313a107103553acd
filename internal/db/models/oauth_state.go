package models

import "time"

// OAuthState is a short-lived PKCE transit record for the Calendly
// authorization flow. Created at initiate time, consumed (deleted) exactly
// once at callback time. Rows past ExpiresAt are invalid even if otherwise
// matching.
type OAuthState struct {
	State        string `gorm:"primaryKey"` // random anti-CSRF token
	UserID       string `gorm:"index;not null"`
	CodeVerifier string `gorm:"not null"`
	Scope        string
	RedirectURI  string
	ExpiresAt    time.Time
	CreatedAt    time.Time
}
