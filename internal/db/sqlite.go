package db

import (
	"crypto/rand"
	"encoding/hex"
	"log"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/pulseboard/pulseboard/internal/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB initializes the SQLite database connection and runs migrations.
func InitDB(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	// Auto-migrate all models
	if err := db.AutoMigrate(
		&models.User{},
		&models.Integration{},
		&models.Credential{},
		&models.Snapshot{},
		&models.OAuthState{},
	); err != nil {
		return nil, err
	}

	return db, nil
}

// EnsureBootstrapUser creates the first dashboard user with a fresh API key
// if no users exist, and returns that user. The key is logged once so the
// operator can hand it to the UI.
func EnsureBootstrapUser(db *gorm.DB) (*models.User, error) {
	var user models.User
	if err := db.Order("created_at").First(&user).Error; err == nil {
		return &user, nil
	}

	user = models.User{
		ID:     uuid.New().String(),
		Email:  "admin@localhost",
		APIKey: GenerateAPIKey(),
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, err
	}
	log.Printf("🔑 Generated bootstrap user API key: %s", user.APIKey)
	return &user, nil
}

// GenerateAPIKey returns a new dashboard API key: pb-<32 hex chars>.
func GenerateAPIKey() string {
	keyBytes := make([]byte, 16)
	rand.Read(keyBytes)
	return "pb-" + hex.EncodeToString(keyBytes)
}

// UserByAPIKey resolves a user from a presented API key.
func UserByAPIKey(db *gorm.DB, key string) (*models.User, bool) {
	if key == "" {
		return nil, false
	}
	var user models.User
	if err := db.Where("api_key = ?", key).First(&user).Error; err != nil {
		return nil, false
	}
	return &user, true
}
