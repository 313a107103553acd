package models

import "time"

// User is an authenticated dashboard user. Every integration, credential
// and snapshot row is scoped to a user id.
type User struct {
	ID        string `gorm:"primaryKey"` // UUID
	Email     string `gorm:"uniqueIndex"`
	APIKey    string `gorm:"uniqueIndex"` // "pb-" + 32 hex chars
	CreatedAt time.Time
	UpdatedAt time.Time
}
