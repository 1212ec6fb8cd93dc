package protocol

import "testing"

func TestBuildDirectionalSlideIndices(t *testing.T) {
	tests := []struct {
		name      string
		current   SlideIndices
		direction Direction
		want      SlideIndices
		wantOK    bool
	}{
		{name: "left resets fragment keeps v", current: SlideIndices{H: 4, V: 2, F: 3}, direction: DirectionLeft, want: SlideIndices{H: 3, V: 2, F: 0}, wantOK: true},
		{name: "right", current: SlideIndices{H: 4, V: 2, F: 3}, direction: DirectionRight, want: SlideIndices{H: 5, V: 2, F: 0}, wantOK: true},
		{name: "up keeps h", current: SlideIndices{H: 4, V: 2, F: 3}, direction: DirectionUp, want: SlideIndices{H: 4, V: 1, F: 0}, wantOK: true},
		{name: "down", current: SlideIndices{H: 4, V: 2, F: 3}, direction: DirectionDown, want: SlideIndices{H: 4, V: 3, F: 0}, wantOK: true},
		{name: "left at edge", current: SlideIndices{H: 0, V: 1, F: 0}, direction: DirectionLeft, wantOK: false},
		{name: "up at edge", current: SlideIndices{H: 2, V: 0, F: 5}, direction: DirectionUp, wantOK: false},
		{name: "unknown direction", current: SlideIndices{H: 2}, direction: Direction("sideways"), wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := BuildDirectionalSlideIndices(tt.current, tt.direction)
			if ok != tt.wantOK {
				t.Fatalf("expected ok %v, got %v", tt.wantOK, ok)
			}
			if ok && got != tt.want {
				t.Fatalf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestParseDirection(t *testing.T) {
	if d, err := ParseDirection("down"); err != nil || d != DirectionDown {
		t.Fatalf("expected down, got %q (%v)", d, err)
	}
	if _, err := ParseDirection("diagonal"); err == nil {
		t.Fatal("expected error for unknown direction")
	}
}

func TestNavigatorMergesOnlySuppliedFlags(t *testing.T) {
	var n Navigator
	if !n.Allows(DirectionLeft) {
		t.Fatal("expected unknown capability to allow navigation")
	}

	if !n.Observe([]byte(`{"type":"reveal-sync","action":"ready","payload":{"navigation":{"canGoBack":false,"canGoForward":true}}}`)) {
		t.Fatal("expected navigation capabilities to be observed")
	}
	if n.Allows(DirectionLeft) {
		t.Fatal("expected left to be blocked")
	}
	if !n.Allows(DirectionDown) {
		t.Fatal("expected down to stay allowed while unknown")
	}

	n.Observe([]byte(`{"payload":{"capabilities":{"canNavigateDown":false}}}`))
	if n.Allows(DirectionDown) {
		t.Fatal("expected down to be blocked after capabilities update")
	}
	if n.Allows(DirectionLeft) {
		t.Fatal("expected earlier back flag to survive partial update")
	}
}
