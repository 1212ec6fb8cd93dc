package db

import (
	"time"

	"github.com/sqlc-dev/pqtype"
)

type SyncdeckSession struct {
	SessionID         string                `json:"session_id"`
	LastState         pqtype.NullRawMessage `json:"last_state"`
	Indexh            int32                 `json:"indexh"`
	Indexv            int32                 `json:"indexv"`
	Indexf            int64                 `json:"indexf"`
	HasIndices        bool                  `json:"has_indices"`
	ChalkboardStorage string                `json:"chalkboard_storage"`
	UpdatedAt         time.Time             `json:"updated_at"`
}
