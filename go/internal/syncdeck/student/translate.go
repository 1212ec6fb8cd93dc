package student

import (
	"encoding/json"

	"github.com/mcdev12/activebits/go/internal/syncdeck/protocol"
	"github.com/tidwall/sjson"
)

// ToRevealCommandMessage converts a broadcast envelope into a command the
// embedded deck understands. Commands pass through unchanged, state becomes a
// setState command, and everything else (boundary changes included) yields
// false.
func ToRevealCommandMessage(env protocol.Envelope) (protocol.Envelope, bool) {
	if env.Type != protocol.MessageType {
		return protocol.Envelope{}, false
	}
	p, ok := protocol.ParsePayload(env)
	if !ok {
		return protocol.Envelope{}, false
	}

	switch payload := p.(type) {
	case protocol.CommandPayload:
		return env, true
	case protocol.StatePayload:
		state, ok := deckState(payload)
		if !ok {
			return protocol.Envelope{}, false
		}
		return newCommand(env, protocol.CommandSetState, map[string]json.RawMessage{"state": state}), true
	}
	return protocol.Envelope{}, false
}

// deckState picks the deck-native state for a setState command. The explicit
// fragment index wins over the reveal state's own, since some deck code paths
// leave it out of their native state.
func deckState(p protocol.StatePayload) (json.RawMessage, bool) {
	if len(p.RevealState) > 0 {
		if p.Indices == nil || !p.Indices.HasF {
			return p.RevealState, true
		}
		merged, err := sjson.SetBytes([]byte(string(p.RevealState)), "indexf", p.Indices.F)
		if err != nil {
			return p.RevealState, true
		}
		return merged, true
	}

	if p.Indices == nil {
		return nil, false
	}
	fallback, _ := json.Marshal(struct {
		IndexH int `json:"indexh"`
		IndexV int `json:"indexv"`
		IndexF int `json:"indexf"`
	}{p.Indices.H, p.Indices.V, p.Indices.F})
	return fallback, true
}

// ToRevealBoundaryCommandMessage builds a setStudentBoundary command from an
// instructor envelope. The target is the explicit studentBoundary when set,
// else the instructor's live position, else fallback. A boundary never trails
// the instructor: an explicit boundary behind the live position is replaced by
// it. Explicit boundaries are slide-granular and get an unlimited fragment;
// syncToBoundary is set only when the live position stands in for a missing
// boundary.
func ToRevealBoundaryCommandMessage(env protocol.Envelope, instructorLive, fallback *protocol.SlideIndices) (protocol.Envelope, bool) {
	if env.Role != protocol.RoleInstructor {
		return protocol.Envelope{}, false
	}
	p, ok := protocol.ParsePayload(env)
	if !ok {
		return protocol.Envelope{}, false
	}

	var explicit *protocol.IndexSpec
	switch payload := p.(type) {
	case protocol.BoundaryChangedPayload:
		explicit = payload.StudentBoundary
	case protocol.StatePayload:
		explicit = payload.StudentBoundary
	default:
		return protocol.Envelope{}, false
	}

	var (
		target protocol.SlideIndices
		sync   bool
	)
	switch {
	case explicit != nil:
		// Deck-reported boundaries are slide-granular: a supplied f is
		// ignored. Fragment-exact boundaries only come from
		// setStudentBoundary commands, which pass through untranslated.
		target = explicit.SlideIndices.WithUnlimitedFragment()
		if instructorLive != nil && explicit.SlideIndices.Before(*instructorLive) {
			target = instructorLive.WithUnlimitedFragment()
		}
	case instructorLive != nil:
		target = *instructorLive
		sync = true
	case fallback != nil:
		target = *fallback
	default:
		return protocol.Envelope{}, false
	}

	return newCommand(env, protocol.CommandSetStudentBoundary, struct {
		Indices        protocol.SlideIndices `json:"indices"`
		SyncToBoundary bool                  `json:"syncToBoundary"`
	}{target, sync}), true
}

func newCommand(from protocol.Envelope, name string, inner any) protocol.Envelope {
	payload, _ := json.Marshal(struct {
		Name    string `json:"name"`
		Payload any    `json:"payload"`
	}{Name: name, Payload: inner})

	version := from.Version
	if version == "" {
		version = protocol.ProtocolVersion
	}
	return protocol.Envelope{
		Type:    protocol.MessageType,
		Version: version,
		Action:  protocol.ActionCommand,
		DeckID:  from.DeckID,
		Role:    from.Role,
		Source:  from.Source,
		TS:      from.TS,
		Payload: payload,
	}
}
