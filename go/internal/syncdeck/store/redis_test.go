package store

import (
	"testing"
	"time"
)

func TestSnapshotFromHash(t *testing.T) {
	tests := []struct {
		name        string
		fields      map[string]string
		wantIndices bool
		wantH       int
		wantErr     bool
	}{
		{
			name: "full snapshot",
			fields: map[string]string{
				fieldLastState:  `{"type":"reveal-sync"}`,
				fieldIndexH:     "3",
				fieldIndexV:     "1",
				fieldIndexF:     "2",
				fieldChalkboard: "board",
				fieldUpdatedAt:  "1700000000000",
			},
			wantIndices: true,
			wantH:       3,
		},
		{
			name:   "chalkboard only",
			fields: map[string]string{fieldChalkboard: "board"},
		},
		{
			name:   "partial indices ignored",
			fields: map[string]string{fieldIndexH: "3"},
		},
		{
			name: "bad index",
			fields: map[string]string{
				fieldIndexH: "x",
				fieldIndexV: "0",
				fieldIndexF: "0",
			},
			wantErr: true,
		},
		{
			name:    "bad timestamp",
			fields:  map[string]string{fieldUpdatedAt: "soon"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := snapshotFromHash("s1", tt.fields)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got snapshot %+v", snap)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if snap.SessionID != "s1" {
				t.Fatalf("expected session s1, got %q", snap.SessionID)
			}
			if tt.wantIndices != (snap.InstructorIndices != nil) {
				t.Fatalf("expected indices present=%v, got %+v", tt.wantIndices, snap.InstructorIndices)
			}
			if tt.wantIndices && snap.InstructorIndices.H != tt.wantH {
				t.Fatalf("expected h=%d, got %d", tt.wantH, snap.InstructorIndices.H)
			}
			if snap.ChalkboardStorage != tt.fields[fieldChalkboard] {
				t.Fatalf("expected chalkboard %q, got %q", tt.fields[fieldChalkboard], snap.ChalkboardStorage)
			}
		})
	}
}

func TestSnapshotFromHashTimestamp(t *testing.T) {
	snap, err := snapshotFromHash("s1", map[string]string{fieldUpdatedAt: "1700000000000"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.UnixMilli(1700000000000).UTC()
	if !snap.UpdatedAt.Equal(want) {
		t.Fatalf("expected %v, got %v", want, snap.UpdatedAt)
	}
	if snap.LastState != nil {
		t.Fatalf("expected no last state, got %s", snap.LastState)
	}
}
