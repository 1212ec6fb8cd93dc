package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

const maxSessionIDLength = 128

// WebSocketHandler handles WebSocket upgrade requests for syncdeck sessions
type WebSocketHandler struct {
	connectionManager *ConnectionManager
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
	}
}

// HandleSyncDeckConnection handles GET /ws/syncdeck?session_id=&role=
func (h *WebSocketHandler) HandleSyncDeckConnection(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}
	if !validSessionID(sessionID) {
		http.Error(w, "invalid session_id format", http.StatusBadRequest)
		return
	}

	role := ConnRole(r.URL.Query().Get("role"))
	switch role {
	case RoleManager, RoleStudent:
	case "":
		role = RoleStudent
	default:
		http.Error(w, "role must be manager or student", http.StatusBadRequest)
		return
	}

	if role == RoleManager && h.connectionManager.HasManager(sessionID) {
		http.Error(w, ErrManagerConnected.Error(), http.StatusConflict)
		return
	}

	if err := h.connectionManager.UpgradeConnection(w, r, sessionID, role); err != nil {
		log.Error().
			Err(err).
			Str("session_id", sessionID).
			Str("role", string(role)).
			Msg("failed to upgrade WebSocket connection")
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.connectionManager.GetConnectionStats()); err != nil {
		log.Error().Err(err).Msg("failed to encode connection stats")
	}
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/syncdeck", h.HandleSyncDeckConnection)
	mux.HandleFunc("GET /ws/stats", h.HandleConnectionStats)
}

// validSessionID accepts ids that are safe as a NATS subject token.
func validSessionID(id string) bool {
	if len(id) == 0 || len(id) > maxSessionIDLength {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
