package secrets

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pulseboard/pulseboard/internal/db/models"
	"gorm.io/gorm"
)

// Store persists encrypted credentials keyed by (integration, type).
// Decryption happens only inside Get/GetAll; callers never see ciphertext
// and the database never sees plaintext.
type Store struct {
	db  *gorm.DB
	enc *Encryptor
}

// NewStore creates a credential store on top of db.
func NewStore(db *gorm.DB, enc *Encryptor) *Store {
	return &Store{db: db, enc: enc}
}

// Put encrypts value and upserts the (integrationID, credType) row,
// overwriting any prior value of the same type (used for token rotation).
// A nil expiresAt means the credential does not expire.
func (s *Store) Put(userID, integrationID, credType, value string, expiresAt *time.Time) error {
	encrypted, err := s.enc.EncryptToBase64(value)
	if err != nil {
		return fmt.Errorf("encrypt credential: %w", err)
	}

	var existing models.Credential
	err = s.db.Where("integration_id = ? AND type = ?", integrationID, credType).First(&existing).Error
	if err == nil {
		existing.Value = encrypted
		existing.ExpiresAt = expiresAt
		if err := s.db.Save(&existing).Error; err != nil {
			return fmt.Errorf("update credential: %w", err)
		}
		return nil
	}

	cred := models.Credential{
		ID:            uuid.New().String(),
		IntegrationID: integrationID,
		UserID:        userID,
		Type:          credType,
		Value:         encrypted,
		ExpiresAt:     expiresAt,
	}
	if err := s.db.Create(&cred).Error; err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	return nil
}

// Get decrypts and returns the credential of the given type. A missing row
// is reported via ok=false, not an error: callers treat absence as a
// precondition failure of their own.
func (s *Store) Get(integrationID, credType string) (string, bool, error) {
	var cred models.Credential
	err := s.db.Where("integration_id = ? AND type = ?", integrationID, credType).First(&cred).Error
	if err == gorm.ErrRecordNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load credential: %w", err)
	}

	value, err := s.enc.DecryptFromBase64(cred.Value)
	if err != nil {
		return "", false, fmt.Errorf("decrypt credential: %w", err)
	}
	return value, true, nil
}

// GetAll returns every credential of an integration, decrypted, as a
// type → value map.
func (s *Store) GetAll(integrationID string) (map[string]string, error) {
	var creds []models.Credential
	if err := s.db.Where("integration_id = ?", integrationID).Find(&creds).Error; err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}

	out := make(map[string]string, len(creds))
	for _, c := range creds {
		value, err := s.enc.DecryptFromBase64(c.Value)
		if err != nil {
			return nil, fmt.Errorf("decrypt credential %s: %w", c.Type, err)
		}
		out[c.Type] = value
	}
	return out, nil
}

// ExpiresAt returns the stored expiry of a credential, if any.
func (s *Store) ExpiresAt(integrationID, credType string) (*time.Time, bool) {
	var cred models.Credential
	err := s.db.Where("integration_id = ? AND type = ?", integrationID, credType).First(&cred).Error
	if err != nil {
		return nil, false
	}
	return cred.ExpiresAt, true
}

// DeleteAll removes every credential of an integration. Called when the
// integration itself is deleted.
func (s *Store) DeleteAll(integrationID string) error {
	if err := s.db.Where("integration_id = ?", integrationID).Delete(&models.Credential{}).Error; err != nil {
		return fmt.Errorf("delete credentials: %w", err)
	}
	return nil
}
