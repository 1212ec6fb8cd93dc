package protocol

import "testing"

func TestExtractIndices(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   SlideIndices
		wantOK bool
	}{
		{
			name:   "raw reveal state",
			raw:    `{"indexh":2,"indexv":1,"indexf":4}`,
			want:   SlideIndices{H: 2, V: 1, F: 4},
			wantOK: true,
		},
		{
			name:   "raw reveal state missing fields default to zero",
			raw:    `{"indexh":5}`,
			want:   SlideIndices{H: 5},
			wantOK: true,
		},
		{
			name:   "setState command",
			raw:    `{"type":"reveal-sync","action":"command","payload":{"name":"setState","payload":{"state":{"indexh":3,"indexv":0,"indexf":1}}}}`,
			want:   SlideIndices{H: 3, F: 1},
			wantOK: true,
		},
		{
			name:   "other command is ignored",
			raw:    `{"type":"reveal-sync","action":"command","payload":{"name":"setRole","payload":{"state":{"indexh":3}}}}`,
			wantOK: false,
		},
		{
			name:   "ready indices win over navigation current",
			raw:    `{"type":"reveal-sync","action":"ready","payload":{"indices":{"h":1,"v":2},"navigation":{"current":{"h":9,"v":9,"f":9}}}}`,
			want:   SlideIndices{H: 1, V: 2},
			wantOK: true,
		},
		{
			name:   "ready navigation current",
			raw:    `{"type":"reveal-sync","action":"ready","payload":{"navigation":{"current":{"h":6,"v":0,"f":2}}}}`,
			want:   SlideIndices{H: 6, F: 2},
			wantOK: true,
		},
		{
			name:   "state envelope indices",
			raw:    `{"type":"reveal-sync","action":"state","payload":{"indices":{"h":4,"v":1,"f":0},"revealState":{"indexh":0}}}`,
			want:   SlideIndices{H: 4, V: 1},
			wantOK: true,
		},
		{
			name:   "negative values read as zero",
			raw:    `{"indexh":-3,"indexv":2}`,
			want:   SlideIndices{V: 2},
			wantOK: true,
		},
		{name: "malformed json", raw: `{"indexh":`, wantOK: false},
		{name: "not an object", raw: `[1,2,3]`, wantOK: false},
		{name: "no position", raw: `{"type":"reveal-sync","action":"paused"}`, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractIndices([]byte(tt.raw))
			if ok != tt.wantOK {
				t.Fatalf("expected ok %v, got %v", tt.wantOK, ok)
			}
			if ok && got != tt.want {
				t.Fatalf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestExtractCapabilities(t *testing.T) {
	t.Run("explicit capabilities", func(t *testing.T) {
		caps, ok := ExtractCapabilities([]byte(`{"payload":{"capabilities":{"canNavigateBack":true,"canNavigateUp":false}}}`))
		if !ok {
			t.Fatal("expected capabilities")
		}
		if caps.CanNavigateBack == nil || !*caps.CanNavigateBack {
			t.Fatalf("expected back true, got %v", caps.CanNavigateBack)
		}
		if caps.CanNavigateUp == nil || *caps.CanNavigateUp {
			t.Fatalf("expected up false, got %v", caps.CanNavigateUp)
		}
		if caps.CanNavigateForward != nil || caps.CanNavigateDown != nil {
			t.Fatal("expected unsupplied flags to stay unknown")
		}
	})

	t.Run("navigation shape uses canonical names", func(t *testing.T) {
		caps, ok := ExtractCapabilities([]byte(`{"payload":{"navigation":{"canGoBack":false,"canGoForward":true,"canGoDown":true}}}`))
		if !ok {
			t.Fatal("expected capabilities")
		}
		if caps.CanNavigateBack == nil || *caps.CanNavigateBack {
			t.Fatal("expected back false")
		}
		if caps.CanNavigateForward == nil || !*caps.CanNavigateForward {
			t.Fatal("expected forward true")
		}
		if caps.CanNavigateDown == nil || !*caps.CanNavigateDown {
			t.Fatal("expected down true")
		}
		if caps.CanNavigateUp != nil {
			t.Fatal("expected up unknown")
		}
	})

	t.Run("navigation shape requires back and forward", func(t *testing.T) {
		if _, ok := ExtractCapabilities([]byte(`{"payload":{"navigation":{"canGoBack":true}}}`)); ok {
			t.Fatal("expected missing canGoForward to reject the shape")
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if _, ok := ExtractCapabilities([]byte(`not json`)); ok {
			t.Fatal("expected malformed input to be rejected")
		}
	})
}
