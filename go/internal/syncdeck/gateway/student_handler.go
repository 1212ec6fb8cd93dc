package gateway

import (
	"context"
	"errors"

	"github.com/mcdev12/activebits/go/internal/syncdeck/protocol"
	"github.com/mcdev12/activebits/go/internal/syncdeck/store"
	"github.com/mcdev12/activebits/go/internal/syncdeck/student"
	"github.com/rs/zerolog/log"
)

// studentHandler feeds one student deck from the session relay.
type studentHandler struct {
	conn     *Connection
	follower *student.Follower

	lastSeq uint64
	hasSeq  bool
}

func newStudentHandler(c *Connection) *studentHandler {
	return &studentHandler{
		conn:     c,
		follower: student.NewFollower(c.Manager.builder),
	}
}

func (h *studentHandler) onOpen() {
	for _, env := range h.follower.Join() {
		h.conn.sendEnvelope(env)
	}
	for _, env := range h.catchUp() {
		h.apply(env)
	}
}

// catchUp asks the local manager for the session's current state and falls
// back to the persisted snapshot.
func (h *studentHandler) catchUp() []protocol.Envelope {
	cm := h.conn.Manager
	ctx, cancel := context.WithTimeout(context.Background(), cm.config.StoreTimeout)
	defer cancel()

	var envs []protocol.Envelope
	err := cm.WithManager(ctx, h.conn.SessionID, func(m *hostHandler) {
		envs = m.catchUp()
	})
	if err == nil {
		return envs
	}
	if !errors.Is(err, ErrNoManager) {
		log.Warn().Err(err).Str("session_id", h.conn.SessionID).Msg("manager catch-up failed")
	}

	snap, err := cm.store.Load(ctx, h.conn.SessionID)
	if err != nil {
		if !errors.Is(err, store.ErrSessionNotFound) {
			log.Error().Err(err).Str("session_id", h.conn.SessionID).Msg("failed to load session snapshot")
		}
		return nil
	}
	if env, ok := protocol.Decode(snap.LastState); ok {
		envs = append(envs, env)
	}
	if snap.ChalkboardStorage != "" {
		envs = append(envs, cm.builder.ChalkboardStateCommand(snap.ChalkboardStorage))
	}
	return envs
}

func (h *studentHandler) onFrame(raw []byte) {
	for _, env := range h.follower.HandleLocal(raw) {
		h.conn.sendEnvelope(env)
	}
}

func (h *studentHandler) onRelay(msg RelayMessage) {
	if h.hasSeq && msg.Seq <= h.lastSeq {
		log.Debug().
			Str("connection_id", h.conn.ID).
			Uint64("seq", msg.Seq).
			Uint64("last_seq", h.lastSeq).
			Msg("dropping stale relay message")
		return
	}
	h.lastSeq, h.hasSeq = msg.Seq, true
	h.apply(msg.Envelope)
}

func (h *studentHandler) apply(env protocol.Envelope) {
	for _, cmd := range h.follower.HandleBroadcast(env) {
		h.conn.sendEnvelope(cmd)
	}
}

func (h *studentHandler) onClose() {
	log.Debug().Str("connection_id", h.conn.ID).Str("session_id", h.conn.SessionID).Msg("student left session")
}
