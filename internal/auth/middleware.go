package auth

import (
	"net/http"
	"strings"

	"github.com/pulseboard/pulseboard/internal/db"
	"gorm.io/gorm"
)

// APIKeyAuth validates the dashboard API key (Bearer token or x-api-key
// header) and injects the resolved user into the request context.
func APIKeyAuth(database *gorm.DB) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ""
			if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
				key = strings.TrimPrefix(authHeader, "Bearer ")
			}
			if key == "" {
				key = r.Header.Get("x-api-key")
			}

			user, ok := db.UserByAPIKey(database, key)
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error": {"message": "Authentication required", "type": "authentication_error"}}`))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}
