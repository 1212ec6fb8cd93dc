package host

import "github.com/mcdev12/activebits/go/internal/syncdeck/protocol"

// RestoreSuppression withholds outbound state while the instructor's deck is
// walked back to a persisted position.
type RestoreSuppression struct {
	Active        bool
	TargetIndices protocol.SlideIndices
}

// RestoreDecision says what to do with one outbound state message.
type RestoreDecision struct {
	ShouldDrop    bool
	ShouldRelease bool
}

// RestoreInput is the argument of EvaluateRestoreSuppressionForOutboundState.
type RestoreInput struct {
	SuppressOutboundUntilRestore bool
	RestoreTargetIndices         protocol.SlideIndices
	InstructorIndices            protocol.SlideIndices
}

// EvaluateRestoreSuppressionForOutboundState drops every outbound state while
// suppression is active. The message that lands exactly on the target is
// dropped too, but releases suppression for everything after it.
func EvaluateRestoreSuppressionForOutboundState(in RestoreInput) RestoreDecision {
	if !in.SuppressOutboundUntilRestore {
		return RestoreDecision{}
	}
	return RestoreDecision{
		ShouldDrop:    true,
		ShouldRelease: in.InstructorIndices == in.RestoreTargetIndices,
	}
}

// Begin activates suppression until the deck reaches target.
func (r *RestoreSuppression) Begin(target protocol.SlideIndices) {
	r.Active = true
	r.TargetIndices = target
}

// Gate evaluates one outbound state at instructor and applies the release.
func (r *RestoreSuppression) Gate(instructor protocol.SlideIndices) RestoreDecision {
	d := EvaluateRestoreSuppressionForOutboundState(RestoreInput{
		SuppressOutboundUntilRestore: r.Active,
		RestoreTargetIndices:         r.TargetIndices,
		InstructorIndices:            instructor,
	})
	if d.ShouldRelease {
		r.Active = false
	}
	return d
}
