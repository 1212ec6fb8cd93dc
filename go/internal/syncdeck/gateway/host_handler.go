package gateway

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/mcdev12/activebits/go/internal/syncdeck/host"
	"github.com/mcdev12/activebits/go/internal/syncdeck/protocol"
	"github.com/mcdev12/activebits/go/internal/syncdeck/store"
	"github.com/rs/zerolog/log"
)

// hostHandler drives a session from its manager connection: instructor deck
// frames go through host.Session, broadcasts go out on the relay with the
// session sequence, and state changes are persisted.
type hostHandler struct {
	conn    *Connection
	session *host.Session
	seq     uint64
}

func newHostHandler(c *Connection) *hostHandler {
	return &hostHandler{conn: c}
}

func (h *hostHandler) storeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), h.conn.Manager.config.StoreTimeout)
}

func (h *hostHandler) onOpen() {
	cm := h.conn.Manager
	sessionID := h.conn.SessionID

	// Sequences continue above anything a previous manager of this session
	// could have sent.
	h.seq = uint64(cm.clock.Now().UnixMilli())

	ctx, cancel := h.storeContext()
	defer cancel()

	var opts []host.Option
	snap, err := cm.store.Load(ctx, sessionID)
	switch {
	case errors.Is(err, store.ErrSessionNotFound):
		snap = nil
	case err != nil:
		log.Error().Err(err).Str("session_id", sessionID).Msg("failed to load session snapshot")
		snap = nil
	default:
		if env, ok := protocol.Decode(snap.LastState); ok {
			opts = append(opts, host.WithLastState(env))
		}
		opts = append(opts, host.WithChalkboardSnapshot(snap.ChalkboardStorage))
	}

	h.session = host.NewSession(sessionID, cm.builder, opts...)
	if snap != nil && snap.InstructorIndices != nil {
		h.session.Restore(*snap.InstructorIndices)
		log.Info().
			Str("session_id", sessionID).
			Int("indexh", snap.InstructorIndices.H).
			Int("indexv", snap.InstructorIndices.V).
			Msg("restoring instructor position")
	}
}

func (h *hostHandler) onFrame(raw []byte) {
	out := h.session.HandleInstructor(raw)
	if out.Dropped != host.DropNone {
		log.Debug().
			Str("session_id", h.conn.SessionID).
			Str("reason", string(out.Dropped)).
			Msg("instructor message not broadcast")
	}

	for _, env := range out.ToDeck {
		h.conn.sendEnvelope(env)
	}
	h.persist(out)
	h.publish(out.Broadcast)
}

// Managers never receive relayed messages.
func (h *hostHandler) onRelay(RelayMessage) {}

func (h *hostHandler) onClose() {
	log.Info().Str("session_id", h.conn.SessionID).Msg("manager left session")
}

func (h *hostHandler) persist(out host.Outcome) {
	if !out.StateChanged && !out.ChalkboardChanged {
		return
	}
	cm := h.conn.Manager
	ctx, cancel := h.storeContext()
	defer cancel()

	if out.StateChanged {
		h.saveState(ctx)
	}
	if out.ChalkboardChanged {
		if err := cm.store.SaveChalkboard(ctx, h.conn.SessionID, h.session.ChalkboardSnapshot()); err != nil {
			log.Error().Err(err).Str("session_id", h.conn.SessionID).Msg("failed to persist chalkboard")
		}
	}
}

// saveState stores the last broadcast state for catch-up and the instructor's
// own position as the restore target. The two differ while a boundary
// suppresses the instructor.
func (h *hostHandler) saveState(ctx context.Context) {
	indices, ok := h.session.InstructorIndices()
	if !ok {
		return
	}
	var data []byte
	if last, ok := h.session.LastState(); ok {
		encoded, err := protocol.Encode(last)
		if err != nil {
			log.Error().Err(err).Str("session_id", h.conn.SessionID).Msg("failed to encode last state")
			return
		}
		data = encoded
	}
	if err := h.conn.Manager.store.SaveState(ctx, h.conn.SessionID, data, indices); err != nil {
		log.Error().Err(err).Str("session_id", h.conn.SessionID).Msg("failed to persist state")
	}
}

func (h *hostHandler) publish(envs []protocol.Envelope) {
	if len(envs) == 0 {
		return
	}
	ctx, cancel := h.storeContext()
	defer cancel()

	for _, env := range envs {
		h.seq++
		msg := RelayMessage{
			ID:        uuid.New().String(),
			SessionID: h.conn.SessionID,
			Seq:       h.seq,
			Envelope:  env,
		}
		if err := h.conn.Manager.relay.Publish(ctx, msg); err != nil {
			log.Error().
				Err(err).
				Str("session_id", h.conn.SessionID).
				Uint64("seq", msg.Seq).
				Msg("failed to relay envelope")
		}
	}
}

// navigate moves the instructor deck one step and reports whether it moved.
func (h *hostHandler) navigate(direction protocol.Direction) bool {
	out, ok := h.session.Navigate(direction)
	if !ok {
		return false
	}
	for _, env := range out.ToDeck {
		h.conn.sendEnvelope(env)
	}
	return true
}

func (h *hostHandler) forceSyncBoundary(boundary protocol.IndexSpec) {
	h.publish(h.session.ForceSyncBoundary(boundary).Broadcast)
}

func (h *hostHandler) clearBoundary() {
	h.publish(h.session.ClearBoundary().Broadcast)
}

func (h *hostHandler) catchUp() []protocol.Envelope {
	return h.session.CatchUp()
}
