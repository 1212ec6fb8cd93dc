package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/mcdev12/activebits/go/internal/syncdeck/protocol"
	"github.com/mcdev12/activebits/go/internal/syncdeck/store/db"
	"github.com/sqlc-dev/pqtype"
)

// undefinedTable is the Postgres error code for a missing relation.
const undefinedTable = "42P01"

type Querier interface {
	GetSession(ctx context.Context, sessionID string) (db.SyncdeckSession, error)
	UpsertSessionState(ctx context.Context, arg db.UpsertSessionStateParams) error
	UpsertSessionChalkboard(ctx context.Context, arg db.UpsertSessionChalkboardParams) error
}

// PostgresStore persists snapshots in the syncdeck_sessions table.
type PostgresStore struct {
	queries Querier
}

func NewPostgresStore(querier Querier) *PostgresStore {
	return &PostgresStore{
		queries: querier,
	}
}

func (s *PostgresStore) Load(ctx context.Context, sessionID string) (*Snapshot, error) {
	row, err := s.queries.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, classify(err))
	}
	return rowToSnapshot(row), nil
}

func (s *PostgresStore) SaveState(ctx context.Context, sessionID string, state json.RawMessage, indices protocol.SlideIndices) error {
	err := s.queries.UpsertSessionState(ctx, db.UpsertSessionStateParams{
		SessionID: sessionID,
		LastState: pqtype.NullRawMessage{RawMessage: state, Valid: len(state) > 0},
		Indexh:    int32(indices.H),
		Indexv:    int32(indices.V),
		Indexf:    int64(indices.F),
	})
	if err != nil {
		return fmt.Errorf("failed to save session state: %w", classify(err))
	}
	return nil
}

func (s *PostgresStore) SaveChalkboard(ctx context.Context, sessionID, storage string) error {
	if storage == "" {
		return nil
	}
	err := s.queries.UpsertSessionChalkboard(ctx, db.UpsertSessionChalkboardParams{
		SessionID:         sessionID,
		ChalkboardStorage: storage,
	})
	if err != nil {
		return fmt.Errorf("failed to save chalkboard snapshot: %w", classify(err))
	}
	return nil
}

func rowToSnapshot(row db.SyncdeckSession) *Snapshot {
	snap := &Snapshot{
		SessionID:         row.SessionID,
		ChalkboardStorage: row.ChalkboardStorage,
		UpdatedAt:         row.UpdatedAt,
	}
	if row.LastState.Valid {
		snap.LastState = row.LastState.RawMessage
	}
	if row.HasIndices {
		snap.InstructorIndices = &protocol.SlideIndices{
			H: int(row.Indexh),
			V: int(row.Indexv),
			F: int(row.Indexf),
		}
	}
	return snap
}

// classify adds a hint to errors caused by a missing schema.
func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == undefinedTable {
		return fmt.Errorf("syncdeck_sessions table missing, run purge_sessions -migrate: %w", err)
	}
	return err
}
