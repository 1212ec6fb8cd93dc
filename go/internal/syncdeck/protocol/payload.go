package protocol

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Payload is the closed set of action-specific payload shapes. Use
// ParsePayload and a type switch instead of probing optional fields.
type Payload interface {
	action() Action
}

// StatePayload is carried by state envelopes.
type StatePayload struct {
	Indices     *IndexSpec
	RevealState json.RawMessage
	// BoundaryPresent reports whether studentBoundary appeared at all; a
	// present-but-null boundary leaves StudentBoundary nil.
	BoundaryPresent bool
	StudentBoundary *IndexSpec
	Paused          *bool
}

// CommandPayload is carried by command envelopes.
type CommandPayload struct {
	Name    string
	Payload json.RawMessage
}

// ReadyPayload is carried by ready envelopes.
type ReadyPayload struct {
	Indices      *SlideIndices
	Capabilities *NavigationCapabilities
}

// BoundaryChangedPayload is carried by studentBoundaryChanged envelopes.
type BoundaryChangedPayload struct {
	Reason          string
	StudentBoundary *IndexSpec
	Indices         *IndexSpec
}

// PauseChangedPayload is synthesized for paused and resumed envelopes, which
// carry no position data.
type PauseChangedPayload struct {
	Paused bool
}

// ChalkboardStrokePayload is carried by chalkboardStroke envelopes.
type ChalkboardStrokePayload struct {
	Raw json.RawMessage
}

// ChalkboardStatePayload is carried by chalkboardState envelopes.
type ChalkboardStatePayload struct {
	Storage string
	Raw     json.RawMessage
}

func (StatePayload) action() Action { return ActionState }
func (CommandPayload) action() Action { return ActionCommand }
func (ReadyPayload) action() Action { return ActionReady }
func (BoundaryChangedPayload) action() Action { return ActionStudentBoundaryChanged }
func (p PauseChangedPayload) action() Action {
	if p.Paused {
		return ActionPaused
	}
	return ActionResumed
}
func (ChalkboardStrokePayload) action() Action { return ActionChalkboardStroke }
func (ChalkboardStatePayload) action() Action { return ActionChalkboardState }

// Position returns the slide position described by the state payload,
// preferring the explicit indices over the deck's native reveal state.
func (p StatePayload) Position() (SlideIndices, bool) {
	if p.Indices != nil {
		return p.Indices.SlideIndices, true
	}
	if len(p.RevealState) > 0 {
		if idx, ok := revealStateIndices(gjson.ParseBytes(p.RevealState)); ok {
			return idx, true
		}
	}
	return SlideIndices{}, false
}

// ParsePayload classifies env's payload by action. Unknown actions and
// payloads of the wrong JSON type are rejected.
func ParsePayload(env Envelope) (Payload, bool) {
	root := gjson.ParseBytes(env.Payload)

	switch env.Action {
	case ActionState:
		if !root.IsObject() {
			return nil, false
		}
		p := StatePayload{}
		if idx, ok := parseIndexSpec(root.Get("indices")); ok {
			p.Indices = &idx
		}
		if rs := root.Get("revealState"); rs.IsObject() {
			p.RevealState = json.RawMessage(rs.Raw)
		}
		if b := root.Get("studentBoundary"); b.Exists() {
			p.BoundaryPresent = true
			if idx, ok := parseIndexSpec(b); ok {
				p.StudentBoundary = &idx
			}
		}
		if paused := root.Get("paused"); paused.IsBool() {
			v := paused.Bool()
			p.Paused = &v
		}
		return p, true

	case ActionCommand:
		name := root.Get("name")
		if name.Type != gjson.String || name.Str == "" {
			return nil, false
		}
		p := CommandPayload{Name: name.Str}
		if inner := root.Get("payload"); inner.Exists() {
			p.Payload = json.RawMessage(inner.Raw)
		}
		return p, true

	case ActionReady:
		p := ReadyPayload{}
		if idx, ok := parseIndexSpec(root.Get("indices")); ok {
			p.Indices = &idx.SlideIndices
		} else if idx, ok := parseIndexSpec(root.Get("navigation.current")); ok {
			p.Indices = &idx.SlideIndices
		}
		if caps, ok := capabilitiesFromPayload(root); ok {
			p.Capabilities = &caps
		}
		return p, true

	case ActionStudentBoundaryChanged:
		if !root.IsObject() {
			return nil, false
		}
		p := BoundaryChangedPayload{Reason: root.Get("reason").String()}
		if idx, ok := parseIndexSpec(root.Get("studentBoundary")); ok {
			p.StudentBoundary = &idx
		}
		if idx, ok := parseIndexSpec(root.Get("indices")); ok {
			p.Indices = &idx
		}
		return p, true

	case ActionPaused, ActionResumed:
		return PauseChangedPayload{Paused: env.Action == ActionPaused}, true

	case ActionChalkboardStroke:
		return ChalkboardStrokePayload{Raw: clonePayload(env.Payload)}, true

	case ActionChalkboardState:
		return ChalkboardStatePayload{
			Storage: storageString(root.Get("storage")),
			Raw:     clonePayload(env.Payload),
		}, true
	}

	return nil, false
}

// parseIndexSpec reads an {h, v, f} object. Missing or invalid fields default
// to zero.
func parseIndexSpec(r gjson.Result) (IndexSpec, bool) {
	if !r.IsObject() {
		return IndexSpec{}, false
	}
	f := r.Get("f")
	return IndexSpec{
		SlideIndices: SlideIndices{
			H: toIndex(r.Get("h")),
			V: toIndex(r.Get("v")),
			F: toIndex(f),
		},
		HasF: f.Type == gjson.Number,
	}, true
}

func revealStateIndices(r gjson.Result) (SlideIndices, bool) {
	h, v, f := r.Get("indexh"), r.Get("indexv"), r.Get("indexf")
	if h.Type != gjson.Number && v.Type != gjson.Number && f.Type != gjson.Number {
		return SlideIndices{}, false
	}
	return SlideIndices{H: toIndex(h), V: toIndex(v), F: toIndex(f)}, true
}

// toIndex accepts non-negative numbers only; anything else reads as zero.
func toIndex(r gjson.Result) int {
	if r.Type != gjson.Number || r.Num < 0 {
		return 0
	}
	if r.Num >= MaxFragment {
		return MaxFragment
	}
	return int(r.Num)
}

// storageString returns the chalkboard storage as a string. Non-string
// storage values are kept as their raw JSON text.
func storageString(r gjson.Result) string {
	switch r.Type {
	case gjson.String:
		return r.Str
	case gjson.Null:
		return ""
	default:
		return r.Raw
	}
}
