package protocol

import (
	"encoding/json"
	"testing"

	"github.com/tidwall/gjson"
)

func stateEnvelope(payload string) Envelope {
	return Envelope{
		Type:    MessageType,
		Version: ProtocolVersion,
		Action:  ActionState,
		Role:    RoleInstructor,
		Source:  "reveal-iframe-sync",
		TS:      100,
		Payload: json.RawMessage(payload),
	}
}

func TestBuildPausedSnapshotFromAction(t *testing.T) {
	last := stateEnvelope(`{"paused":true,"indices":{"h":2,"v":0,"f":1},"revealState":{"indexh":2,"paused":true}}`)

	t.Run("resumed clears both flags", func(t *testing.T) {
		snap, ok := BuildPausedSnapshotFromAction(ActionResumed, &last)
		if !ok {
			t.Fatal("expected snapshot")
		}
		if snap.Action != ActionState {
			t.Fatalf("expected state action, got %q", snap.Action)
		}
		if gjson.GetBytes(snap.Payload, "paused").Bool() {
			t.Fatal("expected payload.paused false")
		}
		if v := gjson.GetBytes(snap.Payload, "revealState.paused"); !v.Exists() || v.Bool() {
			t.Fatalf("expected revealState.paused false, got %s", v.Raw)
		}
		if gjson.GetBytes(snap.Payload, "indices.h").Int() != 2 {
			t.Fatal("expected position to survive")
		}
	})

	t.Run("paused sets both flags", func(t *testing.T) {
		resumed := stateEnvelope(`{"paused":false,"revealState":{"indexh":1,"paused":false}}`)
		snap, ok := BuildPausedSnapshotFromAction(ActionPaused, &resumed)
		if !ok {
			t.Fatal("expected snapshot")
		}
		if !gjson.GetBytes(snap.Payload, "paused").Bool() || !gjson.GetBytes(snap.Payload, "revealState.paused").Bool() {
			t.Fatalf("expected both paused flags true, got %s", snap.Payload)
		}
	})

	t.Run("input is not mutated", func(t *testing.T) {
		before := string(last.Payload)
		if _, ok := BuildPausedSnapshotFromAction(ActionResumed, &last); !ok {
			t.Fatal("expected snapshot")
		}
		if string(last.Payload) != before {
			t.Fatalf("expected last state untouched, got %s", last.Payload)
		}
	})

	t.Run("no last state", func(t *testing.T) {
		if _, ok := BuildPausedSnapshotFromAction(ActionPaused, nil); ok {
			t.Fatal("expected no snapshot without a last state")
		}
	})

	t.Run("other action", func(t *testing.T) {
		if _, ok := BuildPausedSnapshotFromAction(ActionReady, &last); ok {
			t.Fatal("expected ready to be rejected")
		}
	})
}

func TestIncludePausedInStateEnvelope(t *testing.T) {
	t.Run("explicit flag wins", func(t *testing.T) {
		env := stateEnvelope(`{"paused":false,"revealState":{"paused":false}}`)
		out, ok := IncludePausedInStateEnvelope(env, true)
		if !ok {
			t.Fatal("expected state envelope to be stamped")
		}
		if !gjson.GetBytes(out.Payload, "paused").Bool() || !gjson.GetBytes(out.Payload, "revealState.paused").Bool() {
			t.Fatalf("expected stale flags overwritten, got %s", out.Payload)
		}
	})

	t.Run("reveal state is not invented", func(t *testing.T) {
		env := stateEnvelope(`{"indices":{"h":1}}`)
		out, _ := IncludePausedInStateEnvelope(env, true)
		if gjson.GetBytes(out.Payload, "revealState").Exists() {
			t.Fatalf("expected no revealState, got %s", out.Payload)
		}
	})

	t.Run("non-state envelopes pass through", func(t *testing.T) {
		env := Envelope{Type: MessageType, Action: ActionReady, Payload: json.RawMessage(`{}`)}
		out, ok := IncludePausedInStateEnvelope(env, true)
		if ok {
			t.Fatal("expected ready envelope to be left alone")
		}
		if string(out.Payload) != `{}` {
			t.Fatalf("expected payload untouched, got %s", out.Payload)
		}
	})
}
