package handlers

import (
	"net/http"
	"time"

	"github.com/albocarride/server/internal/middleware"
)

type meResponse struct {
	ID          string    `json:"id"`
	PhoneNumber string    `json:"phoneNumber"`
	FullName    string    `json:"fullName"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"createdAt"`
}

// HandleMe handles GET /me (protected). Returns the authenticated profile.
func HandleMe(w http.ResponseWriter, r *http.Request) {
	profile, ok := middleware.GetProfile(r.Context())
	if !ok || profile == nil {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	respondWithJSON(w, http.StatusOK, meResponse{
		ID:          profile.ID.String(),
		PhoneNumber: profile.Phone,
		FullName:    profile.FullName,
		Role:        string(profile.Role),
		CreatedAt:   profile.CreatedAt,
	})
}
