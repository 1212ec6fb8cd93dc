package host

import "github.com/mcdev12/activebits/go/internal/syncdeck/protocol"

// ShouldSuppressInstructorStateBroadcast reports whether the instructor's own
// state must be withheld because it is behind or exactly at an explicitly set
// student boundary. Once the instructor has restricted students to a boundary
// ahead of their cursor, routine instructor navigation must not override it
// until the instructor moves past it.
func ShouldSuppressInstructorStateBroadcast(instructorIndices protocol.SlideIndices, explicitBoundary *protocol.SlideIndices) bool {
	if explicitBoundary == nil {
		return false
	}
	return instructorIndices.Compare(*explicitBoundary) <= 0
}
