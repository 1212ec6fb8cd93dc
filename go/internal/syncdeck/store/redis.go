package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/activebits/go/internal/syncdeck/protocol"
	"github.com/redis/go-redis/v9"
)

// Hash fields of a session snapshot.
const (
	fieldLastState  = "last_state"
	fieldIndexH     = "indexh"
	fieldIndexV     = "indexv"
	fieldIndexF     = "indexf"
	fieldChalkboard = "chalkboard_storage"
	fieldUpdatedAt  = "updated_at"
)

// RedisStore keeps one hash per session. Every write refreshes the key TTL so
// idle sessions expire without a purge job.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	clock  clockwork.Clock
}

func NewRedisStore(rdb *redis.Client, prefix string, ttl time.Duration, clock clockwork.Clock) *RedisStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if prefix == "" {
		prefix = "syncdeck:snapshot"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: ttl, clock: clock}
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (*Snapshot, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if len(fields) == 0 {
		return nil, ErrSessionNotFound
	}
	return snapshotFromHash(sessionID, fields)
}

func (s *RedisStore) SaveState(ctx context.Context, sessionID string, state json.RawMessage, indices protocol.SlideIndices) error {
	return s.write(ctx, sessionID, map[string]interface{}{
		fieldLastState: string(state),
		fieldIndexH:    indices.H,
		fieldIndexV:    indices.V,
		fieldIndexF:    indices.F,
		fieldUpdatedAt: s.clock.Now().UnixMilli(),
	})
}

func (s *RedisStore) SaveChalkboard(ctx context.Context, sessionID, storage string) error {
	if storage == "" {
		return nil
	}
	return s.write(ctx, sessionID, map[string]interface{}{
		fieldChalkboard: storage,
		fieldUpdatedAt:  s.clock.Now().UnixMilli(),
	})
}

func (s *RedisStore) write(ctx context.Context, sessionID string, values map[string]interface{}) error {
	key := s.key(sessionID)
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, values)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session %s: %w", sessionID, err)
	}
	return nil
}

// snapshotFromHash decodes a session hash. Indices are present only when all
// three fields are.
func snapshotFromHash(sessionID string, fields map[string]string) (*Snapshot, error) {
	snap := &Snapshot{
		SessionID:         sessionID,
		ChalkboardStorage: fields[fieldChalkboard],
	}
	if raw := fields[fieldLastState]; raw != "" {
		snap.LastState = json.RawMessage(raw)
	}

	h, hOK := fields[fieldIndexH]
	v, vOK := fields[fieldIndexV]
	f, fOK := fields[fieldIndexF]
	if hOK && vOK && fOK {
		var idx protocol.SlideIndices
		var err error
		if idx.H, err = strconv.Atoi(h); err != nil {
			return nil, fmt.Errorf("decode %s for session %s: %w", fieldIndexH, sessionID, err)
		}
		if idx.V, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("decode %s for session %s: %w", fieldIndexV, sessionID, err)
		}
		if idx.F, err = strconv.Atoi(f); err != nil {
			return nil, fmt.Errorf("decode %s for session %s: %w", fieldIndexF, sessionID, err)
		}
		snap.InstructorIndices = &idx
	}

	if ms, ok := fields[fieldUpdatedAt]; ok {
		n, err := strconv.ParseInt(ms, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode %s for session %s: %w", fieldUpdatedAt, sessionID, err)
		}
		snap.UpdatedAt = time.UnixMilli(n).UTC()
	}
	return snap, nil
}
