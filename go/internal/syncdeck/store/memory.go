package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/activebits/go/internal/syncdeck/protocol"
)

// MemoryStore keeps snapshots in process. Snapshots are lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	clock    clockwork.Clock
	sessions map[string]*Snapshot
}

func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{
		clock:    clock,
		sessions: make(map[string]*Snapshot),
	}
}

func (m *MemoryStore) Load(_ context.Context, sessionID string) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return copySnapshot(snap), nil
}

func (m *MemoryStore) SaveState(_ context.Context, sessionID string, state json.RawMessage, indices protocol.SlideIndices) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.getOrCreate(sessionID)
	snap.LastState = append(json.RawMessage(nil), state...)
	snap.InstructorIndices = &indices
	snap.UpdatedAt = m.clock.Now()
	return nil
}

func (m *MemoryStore) SaveChalkboard(_ context.Context, sessionID, storage string) error {
	if storage == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.getOrCreate(sessionID)
	snap.ChalkboardStorage = storage
	snap.UpdatedAt = m.clock.Now()
	return nil
}

func (m *MemoryStore) getOrCreate(sessionID string) *Snapshot {
	snap, ok := m.sessions[sessionID]
	if !ok {
		snap = &Snapshot{SessionID: sessionID}
		m.sessions[sessionID] = snap
	}
	return snap
}

func copySnapshot(s *Snapshot) *Snapshot {
	out := *s
	if s.LastState != nil {
		out.LastState = append(json.RawMessage(nil), s.LastState...)
	}
	if s.InstructorIndices != nil {
		idx := *s.InstructorIndices
		out.InstructorIndices = &idx
	}
	return &out
}
