package control

import (
	"encoding/json"
	"errors"
	"net/http"

	"webpanel/internal/screen"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	screen *screen.Screen
	hub    *Hub
}

// NewHandler creates a new HTTP handler for one screen.
func NewHandler(s *screen.Screen, hub *Hub) *Handler {
	return &Handler{screen: s, hub: hub}
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// GetScreen handles GET /v1/screen.
func (h *Handler) GetScreen(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.screen.Status())
}

// ReloadScreen handles POST /v1/screen/reload.
func (h *Handler) ReloadScreen(w http.ResponseWriter, r *http.Request) {
	if h.screen.Fallback() != "" {
		http.Error(w, "screen is in fallback state", http.StatusConflict)
		return
	}

	if err := h.screen.Reload(); err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, screen.ErrNotShown) {
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.screen.Status())
}

// Events handles GET /v1/screen/events by upgrading to a websocket that
// streams screen events.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeWS(w, r)
}
