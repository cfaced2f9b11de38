package relay

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler serves the relay endpoints
type WebSocketHandler struct {
	hub *Hub
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// HandleConnection upgrades GET /ws. user_id and room_id query parameters are
// optional and only used to attribute recorded hits.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	userID := uuid.New()
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid user_id format", http.StatusBadRequest)
			return
		}
		userID = parsed
	}

	var roomID uuid.NullUUID
	if raw := r.URL.Query().Get("room_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid room_id format", http.StatusBadRequest)
			return
		}
		roomID = uuid.NullUUID{UUID: parsed, Valid: true}
	}

	// Upgrade writes its own error response on failure
	if err := h.hub.UpgradeConnection(w, r, userID, roomID); err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID.String()).
			Msg("failed to upgrade WebSocket connection")
	}
}

// HandleStats returns statistics about active connections
func (h *WebSocketHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.hub.Stats(r.Context())
	if err != nil {
		http.Error(w, "relay unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		log.Error().Err(err).Msg("failed to encode relay stats")
	}
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", h.HandleConnection)
	mux.HandleFunc("GET /ws/stats", h.HandleStats)
}
