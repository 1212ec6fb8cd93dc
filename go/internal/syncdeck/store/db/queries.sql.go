package db

import (
	"context"

	"github.com/sqlc-dev/pqtype"
)

const getSession = `-- name: GetSession :one
SELECT session_id, last_state, indexh, indexv, indexf, has_indices, chalkboard_storage, updated_at
FROM syncdeck_sessions
WHERE session_id = $1
`

func (q *Queries) GetSession(ctx context.Context, sessionID string) (SyncdeckSession, error) {
	row := q.db.QueryRowContext(ctx, getSession, sessionID)
	var i SyncdeckSession
	err := row.Scan(
		&i.SessionID,
		&i.LastState,
		&i.Indexh,
		&i.Indexv,
		&i.Indexf,
		&i.HasIndices,
		&i.ChalkboardStorage,
		&i.UpdatedAt,
	)
	return i, err
}

const upsertSessionState = `-- name: UpsertSessionState :exec
INSERT INTO syncdeck_sessions (session_id, last_state, indexh, indexv, indexf, has_indices, updated_at)
VALUES ($1, $2, $3, $4, $5, TRUE, NOW())
ON CONFLICT (session_id) DO UPDATE
SET last_state = EXCLUDED.last_state,
    indexh = EXCLUDED.indexh,
    indexv = EXCLUDED.indexv,
    indexf = EXCLUDED.indexf,
    has_indices = TRUE,
    updated_at = NOW()
`

type UpsertSessionStateParams struct {
	SessionID string                `json:"session_id"`
	LastState pqtype.NullRawMessage `json:"last_state"`
	Indexh    int32                 `json:"indexh"`
	Indexv    int32                 `json:"indexv"`
	Indexf    int64                 `json:"indexf"`
}

func (q *Queries) UpsertSessionState(ctx context.Context, arg UpsertSessionStateParams) error {
	_, err := q.db.ExecContext(ctx, upsertSessionState,
		arg.SessionID,
		arg.LastState,
		arg.Indexh,
		arg.Indexv,
		arg.Indexf,
	)
	return err
}

const upsertSessionChalkboard = `-- name: UpsertSessionChalkboard :exec
INSERT INTO syncdeck_sessions (session_id, chalkboard_storage, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (session_id) DO UPDATE
SET chalkboard_storage = EXCLUDED.chalkboard_storage,
    updated_at = NOW()
`

type UpsertSessionChalkboardParams struct {
	SessionID         string `json:"session_id"`
	ChalkboardStorage string `json:"chalkboard_storage"`
}

func (q *Queries) UpsertSessionChalkboard(ctx context.Context, arg UpsertSessionChalkboardParams) error {
	_, err := q.db.ExecContext(ctx, upsertSessionChalkboard, arg.SessionID, arg.ChalkboardStorage)
	return err
}
