package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/albocarride/server/internal/identity"
	"github.com/albocarride/server/internal/model"
	"github.com/albocarride/server/internal/repo"
	"github.com/google/uuid"
)

type contextKey string

const (
	profileKey contextKey = "profile"
	userIDKey  contextKey = "user_id"
)

// TokenVerifier verifies bearer access tokens
type TokenVerifier interface {
	VerifyToken(token string) (*identity.Claims, error)
}

// AuthMiddleware validates JWT tokens, loads the profile from DB, and attaches it to context
func AuthMiddleware(verifier TokenVerifier, accounts repo.AccountRepo) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondWithError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				respondWithError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			tokenString := strings.TrimSpace(parts[1])
			if tokenString == "" {
				respondWithError(w, http.StatusUnauthorized, "missing token")
				return
			}

			claims, err := verifier.VerifyToken(tokenString)
			if err != nil {
				respondWithError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			profile, err := accounts.GetProfileByID(r.Context(), claims.UserID)
			if err != nil {
				respondWithError(w, http.StatusUnauthorized, "user not found")
				return
			}

			ctx := context.WithValue(r.Context(), profileKey, &profile)
			ctx = context.WithValue(ctx, userIDKey, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetProfile returns the profile attached to the request context (set by AuthMiddleware)
func GetProfile(ctx context.Context) (*model.Profile, bool) {
	p, ok := ctx.Value(profileKey).(*model.Profile)
	return p, ok
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(userIDKey).(uuid.UUID)
	return userID, ok
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := map[string]string{"error": message}
	_ = json.NewEncoder(w).Encode(response)
}
