package host

import "github.com/mcdev12/activebits/go/internal/syncdeck/protocol"

// ChalkboardSnapshotCache holds the last non-empty chalkboard storage seen in
// a session. Empty payloads never overwrite it.
type ChalkboardSnapshotCache struct {
	storage string
}

// Snapshot returns the cached storage, or "" when nothing was seen yet.
func (c *ChalkboardSnapshotCache) Snapshot() string {
	return c.storage
}

// Seed primes the cache from persisted state.
func (c *ChalkboardSnapshotCache) Seed(storage string) {
	if storage != "" {
		c.storage = storage
	}
}

// Relay applies the snapshot fallback to a chalkboard relay command and
// records non-empty board states. It reports whether the cache changed.
func (c *ChalkboardSnapshotCache) Relay(relay protocol.Envelope) (protocol.Envelope, bool) {
	fallback := protocol.ApplyChalkboardSnapshotFallback(relay, c.storage)
	out := relay.WithPayload(fallback.RelayPayload)
	if fallback.Restored {
		return out, false
	}

	storage, ok := protocol.ChalkboardStorage(out)
	if !ok || storage == "" || storage == c.storage {
		return out, false
	}
	c.storage = storage
	return out, true
}
