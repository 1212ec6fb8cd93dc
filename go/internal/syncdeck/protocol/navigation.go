package protocol

import "fmt"

// Direction is a single-step navigation request.
type Direction string

const (
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
	DirectionUp    Direction = "up"
	DirectionDown  Direction = "down"
)

// ParseDirection validates a direction name.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case DirectionLeft, DirectionRight, DirectionUp, DirectionDown:
		return d, nil
	default:
		return "", fmt.Errorf("unknown direction %q", s)
	}
}

// BuildDirectionalSlideIndices moves one step from current. Horizontal moves
// keep v, vertical moves keep h, and both reset the fragment. It returns false
// when the move would leave the deck on the top or left edge; right and down
// bounds belong to the deck itself.
func BuildDirectionalSlideIndices(current SlideIndices, direction Direction) (SlideIndices, bool) {
	next := SlideIndices{H: current.H, V: current.V}

	switch direction {
	case DirectionLeft:
		next.H--
	case DirectionRight:
		next.H++
	case DirectionUp:
		next.V--
	case DirectionDown:
		next.V++
	default:
		return SlideIndices{}, false
	}

	if next.H < 0 || next.V < 0 {
		return SlideIndices{}, false
	}
	return next, true
}

// Navigator remembers the most recent navigation capabilities a deck
// reported. Later reports only overwrite the flags they carry.
type Navigator struct {
	caps NavigationCapabilities
}

// Observe merges any capabilities found in raw and reports whether it found any.
func (n *Navigator) Observe(raw []byte) bool {
	caps, ok := ExtractCapabilities(raw)
	if !ok {
		return false
	}
	n.Merge(caps)
	return true
}

// Merge overwrites the known flags with those set in caps.
func (n *Navigator) Merge(caps NavigationCapabilities) {
	if caps.CanNavigateBack != nil {
		n.caps.CanNavigateBack = caps.CanNavigateBack
	}
	if caps.CanNavigateForward != nil {
		n.caps.CanNavigateForward = caps.CanNavigateForward
	}
	if caps.CanNavigateUp != nil {
		n.caps.CanNavigateUp = caps.CanNavigateUp
	}
	if caps.CanNavigateDown != nil {
		n.caps.CanNavigateDown = caps.CanNavigateDown
	}
}

// Capabilities returns the merged flags.
func (n *Navigator) Capabilities() NavigationCapabilities {
	return n.caps
}

// Allows reports whether a move is permitted. Only a flag known to be false
// blocks a move.
func (n *Navigator) Allows(direction Direction) bool {
	var flag *bool
	switch direction {
	case DirectionLeft:
		flag = n.caps.CanNavigateBack
	case DirectionRight:
		flag = n.caps.CanNavigateForward
	case DirectionUp:
		flag = n.caps.CanNavigateUp
	case DirectionDown:
		flag = n.caps.CanNavigateDown
	default:
		return false
	}
	return flag == nil || *flag
}
