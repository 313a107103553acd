package integrations

import "errors"

var (
	// ErrUnauthenticated is returned when no user is present in the
	// context; rejected before any registry access.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrAlreadyConnected is returned when a non-disconnected integration
	// already exists for the (user, provider) pair; rejected before any
	// network call, existing state untouched.
	ErrAlreadyConnected = errors.New("provider already connected")

	// ErrNotFound is returned when an integration id does not exist or
	// belongs to another user.
	ErrNotFound = errors.New("integration not found")

	// ErrNoAIIntegration is returned by Ask when no connected AI
	// integration exists for the user.
	ErrNoAIIntegration = errors.New("no connected AI integration")
)
