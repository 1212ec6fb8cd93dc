package host

import (
	"testing"

	"github.com/mcdev12/activebits/go/internal/syncdeck/protocol"
)

func TestEvaluateRestoreSuppressionForOutboundState(t *testing.T) {
	target := protocol.SlideIndices{H: 5, V: 1}

	tests := []struct {
		name       string
		active     bool
		instructor protocol.SlideIndices
		want       RestoreDecision
	}{
		{name: "inactive never drops", active: false, instructor: protocol.SlideIndices{H: 1}, want: RestoreDecision{}},
		{name: "inactive at target", active: false, instructor: target, want: RestoreDecision{}},
		{name: "catching up", active: true, instructor: protocol.SlideIndices{H: 3}, want: RestoreDecision{ShouldDrop: true}},
		{name: "landed on target", active: true, instructor: target, want: RestoreDecision{ShouldDrop: true, ShouldRelease: true}},
		{name: "fragment mismatch keeps suppressing", active: true, instructor: protocol.SlideIndices{H: 5, V: 1, F: 1}, want: RestoreDecision{ShouldDrop: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateRestoreSuppressionForOutboundState(RestoreInput{
				SuppressOutboundUntilRestore: tt.active,
				RestoreTargetIndices:         target,
				InstructorIndices:            tt.instructor,
			})
			if got != tt.want {
				t.Fatalf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestRestoreSuppressionGateReleasesOnce(t *testing.T) {
	var r RestoreSuppression
	r.Begin(protocol.SlideIndices{H: 2})

	if d := r.Gate(protocol.SlideIndices{H: 0}); !d.ShouldDrop || d.ShouldRelease {
		t.Fatalf("expected drop while catching up, got %+v", d)
	}
	if d := r.Gate(protocol.SlideIndices{H: 2}); !d.ShouldDrop || !d.ShouldRelease {
		t.Fatalf("expected drop and release on target, got %+v", d)
	}
	if r.Active {
		t.Fatal("expected suppression released")
	}
	if d := r.Gate(protocol.SlideIndices{H: 3}); d.ShouldDrop {
		t.Fatalf("expected broadcasting to resume, got %+v", d)
	}
}
