// Package calendly implements the Calendly authorization-code flow with
// PKCE. Transit state lives in the database with a short TTL and is
// consumed exactly once at callback time.
package calendly

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/pulseboard/pulseboard/internal/db/models"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

// stateTTL bounds how long an initiated flow stays redeemable.
const stateTTL = 10 * time.Minute

// ErrInvalidState is returned for unknown, expired, replayed or
// wrong-user states. Callers must treat it as a hard rejection, not retry.
var ErrInvalidState = errors.New("invalid or expired OAuth state")

// OAuth drives the Calendly PKCE flow against the configured client.
type OAuth struct {
	db           *gorm.DB
	clientID     string
	clientSecret string
	authURL      string
	tokenURL     string
}

// New creates the flow helper. Returns nil when no client id is
// configured, which disables the OAuth endpoints.
func New(db *gorm.DB, clientID, clientSecret, authURL, tokenURL string) *OAuth {
	if clientID == "" {
		return nil
	}
	return &OAuth{
		db:           db,
		clientID:     clientID,
		clientSecret: clientSecret,
		authURL:      authURL,
		tokenURL:     tokenURL,
	}
}

func (o *OAuth) config(redirectURI, scope string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     o.clientID,
		ClientSecret: o.clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       []string{scope},
		Endpoint: oauth2.Endpoint{
			AuthURL:  o.authURL,
			TokenURL: o.tokenURL,
		},
	}
}

// Initiate creates a transit-state row and returns the authorization URL
// the browser should be sent to.
func (o *OAuth) Initiate(userID, redirectURI, scope string) (authorizationURL, state string, err error) {
	if scope == "" {
		scope = "default"
	}

	// Opportunistic sweep: expired rows are invalid anyway.
	if err := o.db.Where("expires_at < ?", time.Now()).Delete(&models.OAuthState{}).Error; err != nil {
		log.Printf("⚠️ OAuth state sweep failed: %v", err)
	}

	verifier := oauth2.GenerateVerifier()
	state = uuid.New().String()
	row := models.OAuthState{
		State:        state,
		UserID:       userID,
		CodeVerifier: verifier,
		Scope:        scope,
		RedirectURI:  redirectURI,
		ExpiresAt:    time.Now().Add(stateTTL),
	}
	if err := o.db.Create(&row).Error; err != nil {
		return "", "", fmt.Errorf("store OAuth state: %w", err)
	}

	cfg := o.config(redirectURI, scope)
	return cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)), state, nil
}

// Exchange validates and consumes the transit state, then exchanges the
// authorization code (with the stored PKCE verifier) for tokens.
func (o *OAuth) Exchange(ctx context.Context, userID, state, code string) (*oauth2.Token, error) {
	var row models.OAuthState
	err := o.db.Where("state = ?", state).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrInvalidState
	}
	if err != nil {
		return nil, fmt.Errorf("load OAuth state: %w", err)
	}

	if row.UserID != userID {
		return nil, ErrInvalidState
	}
	if time.Now().After(row.ExpiresAt) {
		o.db.Delete(&models.OAuthState{}, "state = ?", state)
		return nil, ErrInvalidState
	}

	// Single use: consume before the network call so a replay cannot race
	// the exchange.
	if err := o.db.Delete(&models.OAuthState{}, "state = ?", state).Error; err != nil {
		return nil, fmt.Errorf("consume OAuth state: %w", err)
	}

	cfg := o.config(row.RedirectURI, row.Scope)
	token, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(row.CodeVerifier))
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	return token, nil
}

// RefreshToken renews an access token from a stored refresh token.
// Implements the orchestrator's TokenRefresher.
func (o *OAuth) RefreshToken(ctx context.Context, refreshToken string) (access, newRefresh string, expiry time.Time, err error) {
	cfg := o.config("", "default")
	source := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("refresh token: %w", err)
	}
	return token.AccessToken, token.RefreshToken, token.Expiry, nil
}
