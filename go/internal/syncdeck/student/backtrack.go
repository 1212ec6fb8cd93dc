package student

import "github.com/mcdev12/activebits/go/internal/syncdeck/protocol"

// BacktrackOptOut is set while a student has manually moved behind the
// instructor and should not be dragged forward by instructor updates.
type BacktrackOptOut struct {
	Active bool
}

// ShouldSuppressForwardInstructorSync reports whether an instructor update
// must not be applied: the student opted out and is still strictly behind.
func ShouldSuppressForwardInstructorSync(optedOut bool, studentIndices, instructorIndices *protocol.SlideIndices) bool {
	if !optedOut || studentIndices == nil || instructorIndices == nil {
		return false
	}
	return studentIndices.Before(*instructorIndices)
}

// ShouldResetBacktrackOptOutByMaxPosition reports whether the opt-out should
// be cleared because the student caught back up to the furthest position it
// has ever reached.
func ShouldResetBacktrackOptOutByMaxPosition(optedOut bool, studentIndices, maxPositionEverReached *protocol.SlideIndices) bool {
	if !optedOut || studentIndices == nil || maxPositionEverReached == nil {
		return false
	}
	return studentIndices.Compare(*maxPositionEverReached) >= 0
}
