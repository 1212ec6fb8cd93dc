package protocol

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

const (
	// MessageType tags every envelope of the deck sync protocol.
	MessageType = "reveal-sync"
	// ProtocolVersion is stamped on envelopes built by this package.
	ProtocolVersion = "1.0.0"
	// HostSource identifies envelopes originated by the host rather than a deck.
	HostSource = "activebits-syncdeck-host"
)

// Action is the envelope discriminator.
type Action string

const (
	ActionState                  Action = "state"
	ActionCommand                Action = "command"
	ActionReady                  Action = "ready"
	ActionStudentBoundaryChanged Action = "studentBoundaryChanged"
	ActionPaused                 Action = "paused"
	ActionResumed                Action = "resumed"
	ActionChalkboardStroke       Action = "chalkboardStroke"
	ActionChalkboardState        Action = "chalkboardState"
)

// Role is the sender's role within a session.
type Role string

const (
	RoleInstructor Role = "instructor"
	RoleStudent    Role = "student"
)

// Command names understood by the embedded deck.
const (
	CommandSetState           = "setState"
	CommandSetRole            = "setRole"
	CommandSetStudentBoundary = "setStudentBoundary"
	CommandClearBoundary      = "clearBoundary"
	CommandChalkboardStroke   = "chalkboardStroke"
	CommandChalkboardState    = "chalkboardState"
)

// BoundaryReasonInstructorSet marks a boundary change made by the instructor.
const BoundaryReasonInstructorSet = "instructorSet"

// Envelope is a single protocol message. Envelopes are values: transforms
// return new envelopes and never write into the payload of their input.
type Envelope struct {
	Type    string          `json:"type"`
	Version string          `json:"version"`
	Action  Action          `json:"action"`
	DeckID  *string         `json:"deckId"`
	Role    Role            `json:"role"`
	Source  string          `json:"source"`
	TS      int64           `json:"ts"`
	Payload json.RawMessage `json:"payload"`
}

// Decode parses raw into an envelope. Anything that is not a reveal-sync
// envelope with an action is rejected. Metadata is read leniently: a numeric
// version or deckId is kept as its text and a fractional ts is truncated, so
// one odd field does not cost the whole message.
func Decode(raw []byte) (Envelope, bool) {
	if !gjson.ValidBytes(raw) {
		return Envelope{}, false
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() || root.Get("type").String() != MessageType {
		return Envelope{}, false
	}
	action := root.Get("action")
	if action.Type != gjson.String || action.Str == "" {
		return Envelope{}, false
	}

	env := Envelope{
		Type:    MessageType,
		Version: scalarText(root.Get("version")),
		Action:  Action(action.Str),
		DeckID:  optionalText(root.Get("deckId")),
		Role:    Role(scalarText(root.Get("role"))),
		Source:  scalarText(root.Get("source")),
	}
	if ts := root.Get("ts"); ts.Type == gjson.Number {
		env.TS = ts.Int()
	}
	if payload := root.Get("payload"); payload.Exists() {
		env.Payload = json.RawMessage(payload.Raw)
	}
	return env, true
}

func scalarText(r gjson.Result) string {
	switch r.Type {
	case gjson.String:
		return r.Str
	case gjson.Number:
		return r.Raw
	default:
		return ""
	}
}

func optionalText(r gjson.Result) *string {
	if r.Type != gjson.String && r.Type != gjson.Number {
		return nil
	}
	s := scalarText(r)
	return &s
}

// Encode marshals env. Envelope fields are all JSON-safe, so the only failure
// is a payload that is not valid JSON.
func Encode(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// Raw returns the envelope re-encoded for shape probing. It returns nil when
// the payload is not valid JSON.
func (e Envelope) Raw() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		return nil
	}
	return data
}

// WithPayload returns a copy of e carrying payload.
func (e Envelope) WithPayload(payload json.RawMessage) Envelope {
	e.Payload = payload
	return e
}

func clonePayload(p json.RawMessage) []byte {
	if len(p) == 0 {
		return nil
	}
	out := make([]byte, len(p))
	copy(out, p)
	return out
}

func commandEnvelope(name string, inner any, role Role, source string, ts int64, deckID *string) Envelope {
	payload, _ := json.Marshal(struct {
		Name    string `json:"name"`
		Payload any    `json:"payload"`
	}{Name: name, Payload: inner})

	return Envelope{
		Type:    MessageType,
		Version: ProtocolVersion,
		Action:  ActionCommand,
		DeckID:  deckID,
		Role:    role,
		Source:  source,
		TS:      ts,
		Payload: payload,
	}
}
