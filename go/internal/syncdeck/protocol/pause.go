package protocol

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// BuildPausedSnapshotFromAction turns a paused/resumed signal into a full
// state envelope derived from the last known state.
func BuildPausedSnapshotFromAction(action Action, lastState *Envelope) (Envelope, bool) {
	if lastState == nil {
		return Envelope{}, false
	}
	switch action {
	case ActionPaused:
		return IncludePausedInStateEnvelope(*lastState, true)
	case ActionResumed:
		return IncludePausedInStateEnvelope(*lastState, false)
	default:
		return Envelope{}, false
	}
}

// IncludePausedInStateEnvelope overwrites payload.paused and, when the payload
// carries a reveal state object, payload.revealState.paused. The explicit flag
// wins over whatever the deck embedded. Non-state envelopes are returned
// unchanged with false.
func IncludePausedInStateEnvelope(env Envelope, paused bool) (Envelope, bool) {
	if env.Action != ActionState {
		return env, false
	}

	payload := clonePayload(env.Payload)
	if !gjson.ParseBytes(payload).IsObject() {
		payload = []byte(`{}`)
	}

	payload, err := sjson.SetBytes(payload, "paused", paused)
	if err != nil {
		return env, false
	}
	if gjson.GetBytes(payload, "revealState").IsObject() {
		payload, err = sjson.SetBytes(payload, "revealState.paused", paused)
		if err != nil {
			return env, false
		}
	}

	return env.WithPayload(payload), true
}
