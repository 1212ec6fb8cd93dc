package gateway

import (
	"context"

	"github.com/mcdev12/activebits/go/internal/syncdeck/protocol"
)

// RelayMessage is one envelope fanned out to the students of a session. Seq
// increases monotonically per session so receivers can drop duplicates and
// stale reorders.
type RelayMessage struct {
	ID        string            `json:"id"`
	SessionID string            `json:"session_id"`
	Seq       uint64            `json:"seq"`
	Envelope  protocol.Envelope `json:"envelope"`
}

// Broadcaster delivers relayed messages to local student connections.
type Broadcaster interface {
	BroadcastToSession(msg RelayMessage)
}

// Relay carries messages from a session's manager to its students, possibly
// across gateway instances.
type Relay interface {
	Publish(ctx context.Context, msg RelayMessage) error
	// Start delivers messages until ctx is done.
	Start(ctx context.Context) error
	Close() error
}

// LocalRelay hands messages straight to the local connection manager. It only
// works when managers and students share one gateway instance.
type LocalRelay struct {
	broadcaster Broadcaster
}

func NewLocalRelay(b Broadcaster) *LocalRelay {
	return &LocalRelay{broadcaster: b}
}

func (r *LocalRelay) Publish(_ context.Context, msg RelayMessage) error {
	r.broadcaster.BroadcastToSession(msg)
	return nil
}

func (r *LocalRelay) Start(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (r *LocalRelay) Close() error { return nil }
