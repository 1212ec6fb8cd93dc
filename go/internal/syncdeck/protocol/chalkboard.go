package protocol

import (
	"encoding/json"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ToChalkboardRelayCommand normalizes the chalkboard message shapes into one
// command envelope named chalkboardStroke or chalkboardState. Already-wrapped
// chalkboard commands pass through unchanged.
func ToChalkboardRelayCommand(env Envelope) (Envelope, bool) {
	switch env.Action {
	case ActionChalkboardStroke:
		return commandEnvelope(CommandChalkboardStroke, rawOrEmpty(env.Payload), env.Role, env.Source, env.TS, env.DeckID), true
	case ActionChalkboardState:
		return commandEnvelope(CommandChalkboardState, rawOrEmpty(env.Payload), env.Role, env.Source, env.TS, env.DeckID), true
	case ActionCommand:
		p, ok := ParsePayload(env)
		if !ok {
			return Envelope{}, false
		}
		cmd := p.(CommandPayload)
		if cmd.Name == CommandChalkboardStroke || cmd.Name == CommandChalkboardState {
			return env, true
		}
	}
	return Envelope{}, false
}

// ChalkboardFallback is the result of ApplyChalkboardSnapshotFallback.
type ChalkboardFallback struct {
	RelayPayload json.RawMessage
	// Restored is set when RestoredSnapshotStorage replaced an empty storage.
	Restored                bool
	RestoredSnapshotStorage string
}

// ApplyChalkboardSnapshotFallback substitutes cachedStorage into a
// chalkboardState command whose storage is empty. A freshly loaded deck can
// briefly report an empty board, and relaying it would erase every student's
// board. Any other relay passes through untouched.
func ApplyChalkboardSnapshotFallback(relay Envelope, cachedStorage string) ChalkboardFallback {
	untouched := ChalkboardFallback{RelayPayload: relay.Payload}

	if relay.Action != ActionCommand || cachedStorage == "" {
		return untouched
	}
	root := gjson.ParseBytes(relay.Payload)
	if root.Get("name").String() != CommandChalkboardState {
		return untouched
	}
	if storageString(root.Get("payload.storage")) != "" {
		return untouched
	}

	payload := clonePayload(relay.Payload)
	if !root.Get("payload").IsObject() {
		var err error
		if payload, err = sjson.SetRawBytes(payload, "payload", []byte(`{}`)); err != nil {
			return untouched
		}
	}
	payload, err := sjson.SetBytes(payload, "payload.storage", cachedStorage)
	if err != nil {
		return untouched
	}

	return ChalkboardFallback{
		RelayPayload:            payload,
		Restored:                true,
		RestoredSnapshotStorage: cachedStorage,
	}
}

// ChalkboardStorage returns the storage string of a chalkboardState relay
// command, and false for anything else.
func ChalkboardStorage(relay Envelope) (string, bool) {
	if relay.Action != ActionCommand {
		return "", false
	}
	root := gjson.ParseBytes(relay.Payload)
	if root.Get("name").String() != CommandChalkboardState {
		return "", false
	}
	return storageString(root.Get("payload.storage")), true
}

func rawOrEmpty(p json.RawMessage) json.RawMessage {
	if len(p) == 0 {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(clonePayload(p))
}
