// Package auth resolves the current dashboard user and carries it through
// request contexts. Every registry and credential operation is scoped to
// the user found here; no user means no access.
package auth

import (
	"context"

	"github.com/pulseboard/pulseboard/internal/db/models"
)

type contextKey string

const userKey contextKey = "user"

// WithUser injects the authenticated user into the context.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// CurrentUser retrieves the authenticated user from the context.
func CurrentUser(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userKey).(*models.User)
	return user, ok && user != nil
}

// UserID is a convenience for the common case of needing only the id.
func UserID(ctx context.Context) (string, bool) {
	user, ok := CurrentUser(ctx)
	if !ok {
		return "", false
	}
	return user.ID, true
}
