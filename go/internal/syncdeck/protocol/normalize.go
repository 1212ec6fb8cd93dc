package protocol

import (
	"github.com/tidwall/gjson"
)

// ExtractIndices finds a slide position in an arbitrary JSON message. Shapes
// are tried in order and the first match wins:
//
//  1. top-level indexh/indexv/indexf (a raw deck state, or a payload carrying one)
//  2. a setState command: payload.payload.state.index*
//  3. a ready envelope: payload.indices
//  4. a ready envelope: payload.navigation.current
//  5. a state envelope: payload.indices, then payload.revealState.index*
//
// Malformed input yields false.
func ExtractIndices(raw []byte) (SlideIndices, bool) {
	if !gjson.ValidBytes(raw) {
		return SlideIndices{}, false
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return SlideIndices{}, false
	}

	if idx, ok := revealStateIndices(root); ok {
		return idx, true
	}
	if idx, ok := revealStateIndices(root.Get("payload")); ok {
		return idx, true
	}

	action := Action(root.Get("action").String())
	payload := root.Get("payload")

	switch action {
	case ActionCommand:
		if payload.Get("name").String() == CommandSetState {
			if idx, ok := revealStateIndices(payload.Get("payload.state")); ok {
				return idx, true
			}
		}
	case ActionReady:
		if idx, ok := parseIndexSpec(payload.Get("indices")); ok {
			return idx.SlideIndices, true
		}
		if idx, ok := parseIndexSpec(payload.Get("navigation.current")); ok {
			return idx.SlideIndices, true
		}
	case ActionState:
		if idx, ok := parseIndexSpec(payload.Get("indices")); ok {
			return idx.SlideIndices, true
		}
		if idx, ok := revealStateIndices(payload.Get("revealState")); ok {
			return idx, true
		}
	}

	return SlideIndices{}, false
}

// ExtractCapabilities reads navigation flags from a message's payload, either
// from an explicit capabilities object or from a navigation object using the
// canGo* names. Only flags the source supplied are set.
func ExtractCapabilities(raw []byte) (NavigationCapabilities, bool) {
	if !gjson.ValidBytes(raw) {
		return NavigationCapabilities{}, false
	}
	return capabilitiesFromPayload(gjson.GetBytes(raw, "payload"))
}

func capabilitiesFromPayload(payload gjson.Result) (NavigationCapabilities, bool) {
	if !payload.IsObject() {
		return NavigationCapabilities{}, false
	}

	if c := payload.Get("capabilities"); c.IsObject() {
		caps := NavigationCapabilities{
			CanNavigateBack:    optionalBool(c.Get("canNavigateBack")),
			CanNavigateForward: optionalBool(c.Get("canNavigateForward")),
			CanNavigateUp:      optionalBool(c.Get("canNavigateUp")),
			CanNavigateDown:    optionalBool(c.Get("canNavigateDown")),
		}
		return caps, true
	}

	if n := payload.Get("navigation"); n.IsObject() {
		back, forward := n.Get("canGoBack"), n.Get("canGoForward")
		if !back.IsBool() || !forward.IsBool() {
			return NavigationCapabilities{}, false
		}
		caps := NavigationCapabilities{
			CanNavigateBack:    optionalBool(back),
			CanNavigateForward: optionalBool(forward),
			CanNavigateUp:      optionalBool(n.Get("canGoUp")),
			CanNavigateDown:    optionalBool(n.Get("canGoDown")),
		}
		return caps, true
	}

	return NavigationCapabilities{}, false
}

func optionalBool(r gjson.Result) *bool {
	if !r.IsBool() {
		return nil
	}
	v := r.Bool()
	return &v
}
