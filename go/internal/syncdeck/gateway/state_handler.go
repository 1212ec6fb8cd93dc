package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mcdev12/activebits/go/internal/syncdeck/protocol"
	"github.com/mcdev12/activebits/go/internal/syncdeck/store"
	"github.com/rs/zerolog/log"
)

// ErrUnknownDirection is returned for a navigate request with a bad direction.
var ErrUnknownDirection = errors.New("unknown direction")

const controlTimeout = 5 * time.Second

// SessionStateResponse is the body of GET /api/syncdeck/sessions/{id}/state
type SessionStateResponse struct {
	Snapshot         *store.Snapshot `json:"snapshot"`
	ManagerConnected bool            `json:"manager_connected"`
	Students         int             `json:"students"`
}

type navigateRequest struct {
	Direction string `json:"direction"`
}

type navigateResponse struct {
	Moved bool `json:"moved"`
}

// boundaryRequest leaves f optional; a boundary without it covers every
// fragment of the slide.
type boundaryRequest struct {
	Indices *struct {
		H int  `json:"h"`
		V int  `json:"v"`
		F *int `json:"f"`
	} `json:"indices"`
}

func (r boundaryRequest) indexSpec() protocol.IndexSpec {
	is := protocol.IndexSpec{SlideIndices: protocol.SlideIndices{H: r.Indices.H, V: r.Indices.V}}
	if r.Indices.F != nil {
		is.F = *r.Indices.F
		is.HasF = true
	}
	return is
}

// StateHandler serves session state and the manager control endpoints
type StateHandler struct {
	connectionManager *ConnectionManager
	store             store.SessionStore
}

// NewStateHandler creates a new state handler
func NewStateHandler(cm *ConnectionManager, sessionStore store.SessionStore) *StateHandler {
	return &StateHandler{
		connectionManager: cm,
		store:             sessionStore,
	}
}

// HandleGetSessionState handles GET /api/syncdeck/sessions/{id}/state
func (h *StateHandler) HandleGetSessionState(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	snap, err := h.store.Load(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("session_id", sessionID).Msg("failed to get session state")
		http.Error(w, "Failed to get session state", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, SessionStateResponse{
		Snapshot:         snap,
		ManagerConnected: h.connectionManager.HasManager(sessionID),
		Students:         h.connectionManager.StudentCount(sessionID),
	})
}

// HandleNavigate handles POST /api/syncdeck/sessions/{id}/navigate
func (h *StateHandler) HandleNavigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	direction, err := parseDirection(req.Direction)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var moved bool
	err = h.withManager(r, func(m *hostHandler) {
		moved = m.navigate(direction)
	})
	if err != nil {
		h.controlError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, navigateResponse{Moved: moved})
}

// HandleSetBoundary handles POST /api/syncdeck/sessions/{id}/boundary
func (h *StateHandler) HandleSetBoundary(w http.ResponseWriter, r *http.Request) {
	var req boundaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Indices == nil {
		http.Error(w, "indices are required", http.StatusBadRequest)
		return
	}
	boundary := req.indexSpec()
	if boundary.H < 0 || boundary.V < 0 || boundary.F < 0 {
		http.Error(w, "indices must not be negative", http.StatusBadRequest)
		return
	}

	err := h.withManager(r, func(m *hostHandler) {
		m.forceSyncBoundary(boundary)
	})
	if err != nil {
		h.controlError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleClearBoundary handles DELETE /api/syncdeck/sessions/{id}/boundary
func (h *StateHandler) HandleClearBoundary(w http.ResponseWriter, r *http.Request) {
	err := h.withManager(r, func(m *hostHandler) {
		m.clearBoundary()
	})
	if err != nil {
		h.controlError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *StateHandler) withManager(r *http.Request, fn func(m *hostHandler)) error {
	ctx, cancel := context.WithTimeout(r.Context(), controlTimeout)
	defer cancel()
	return h.connectionManager.WithManager(ctx, r.PathValue("id"), fn)
}

func (h *StateHandler) controlError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrNoManager) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	log.Error().Err(err).Str("session_id", r.PathValue("id")).Str("path", r.URL.Path).Msg("control request failed")
	http.Error(w, "Control request failed", http.StatusServiceUnavailable)
}

// RegisterStateRoutes registers state and control HTTP routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/syncdeck/sessions/{id}/state", h.HandleGetSessionState)
	mux.HandleFunc("POST /api/syncdeck/sessions/{id}/navigate", h.HandleNavigate)
	mux.HandleFunc("POST /api/syncdeck/sessions/{id}/boundary", h.HandleSetBoundary)
	mux.HandleFunc("DELETE /api/syncdeck/sessions/{id}/boundary", h.HandleClearBoundary)
}

func parseDirection(s string) (protocol.Direction, error) {
	direction, err := protocol.ParseDirection(s)
	if err != nil {
		return "", fmt.Errorf("%w %q", ErrUnknownDirection, s)
	}
	return direction, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
