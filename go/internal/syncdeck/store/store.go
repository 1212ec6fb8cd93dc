package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"time"

	"github.com/mcdev12/activebits/go/internal/syncdeck/protocol"
)

// Schema creates the syncdeck_sessions table.
//
//go:embed schema.sql
var Schema string

// ErrSessionNotFound is returned by Load when nothing was persisted for a session.
var ErrSessionNotFound = errors.New("syncdeck session not found")

// Snapshot is what survives a manager reconnect: the restore target, the last
// full state envelope and the last non-empty chalkboard storage.
type Snapshot struct {
	SessionID         string                 `json:"session_id"`
	LastState         json.RawMessage        `json:"last_state,omitempty"`
	InstructorIndices *protocol.SlideIndices `json:"instructor_indices,omitempty"`
	ChalkboardStorage string                 `json:"chalkboard_storage,omitempty"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

// SessionStore persists session snapshots.
type SessionStore interface {
	Load(ctx context.Context, sessionID string) (*Snapshot, error)
	SaveState(ctx context.Context, sessionID string, state json.RawMessage, indices protocol.SlideIndices) error
	// SaveChalkboard records storage. Empty storage is ignored so a blank
	// board never replaces a real snapshot.
	SaveChalkboard(ctx context.Context, sessionID, storage string) error
}
