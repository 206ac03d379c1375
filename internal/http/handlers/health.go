package handlers

import (
	"context"
	"log"
	"net/http"
	"time"
)

// HealthHandler reports whether the database is reachable
type HealthHandler struct {
	ping func(ctx context.Context) error
}

// NewHealthHandler creates a health handler using ping as the readiness probe
func NewHealthHandler(ping func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{ping: ping}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.ping(ctx); err != nil {
		log.Printf("Health check failed: %v", err)
		respondWithJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": "database unavailable"})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
