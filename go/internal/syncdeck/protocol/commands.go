package protocol

import (
	"encoding/json"

	"github.com/jonboulle/clockwork"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// CommandBuilder builds host-originated envelopes. Every envelope gets a fresh
// millisecond timestamp from the clock.
type CommandBuilder struct {
	clock  clockwork.Clock
	deckID *string
}

// NewCommandBuilder returns a builder stamping envelopes with clock.
func NewCommandBuilder(clock clockwork.Clock) *CommandBuilder {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CommandBuilder{clock: clock}
}

// WithDeckID returns a builder that tags envelopes with deckID.
func (b *CommandBuilder) WithDeckID(deckID string) *CommandBuilder {
	return &CommandBuilder{clock: b.clock, deckID: &deckID}
}

func (b *CommandBuilder) now() int64 {
	return b.clock.Now().UnixMilli()
}

func (b *CommandBuilder) command(name string, inner any) Envelope {
	return commandEnvelope(name, inner, RoleInstructor, HostSource, b.now(), b.deckID)
}

type rolePayload struct {
	Role Role `json:"role"`
}

type boundaryPayload struct {
	Indices        SlideIndices `json:"indices"`
	SyncToBoundary bool         `json:"syncToBoundary"`
}

type setStatePayload struct {
	State revealIndices `json:"state"`
}

type revealIndices struct {
	IndexH int `json:"indexh"`
	IndexV int `json:"indexv"`
	IndexF int `json:"indexf"`
}

func toRevealIndices(s SlideIndices) revealIndices {
	return revealIndices{IndexH: s.H, IndexV: s.V, IndexF: s.F}
}

// InstructorRoleCommand tells a deck it is driven by the instructor.
func (b *CommandBuilder) InstructorRoleCommand() Envelope {
	return b.command(CommandSetRole, rolePayload{Role: RoleInstructor})
}

// StudentRoleCommand tells a deck it follows the instructor.
func (b *CommandBuilder) StudentRoleCommand() Envelope {
	return b.command(CommandSetRole, rolePayload{Role: RoleStudent})
}

// ForceSyncBoundaryCommand sets the student boundary to indices and moves
// students there immediately.
func (b *CommandBuilder) ForceSyncBoundaryCommand(indices SlideIndices) Envelope {
	return b.command(CommandSetStudentBoundary, boundaryPayload{Indices: indices, SyncToBoundary: true})
}

// ClearBoundaryCommand removes any student boundary.
func (b *CommandBuilder) ClearBoundaryCommand() Envelope {
	return b.command(CommandClearBoundary, struct{}{})
}

// SetStateCommand moves a deck to indices.
func (b *CommandBuilder) SetStateCommand(indices SlideIndices) Envelope {
	return b.command(CommandSetState, setStatePayload{State: toRevealIndices(indices)})
}

// ChalkboardStateCommand replays a chalkboard snapshot.
func (b *CommandBuilder) ChalkboardStateCommand(storage string) Envelope {
	return b.command(CommandChalkboardState, struct {
		Storage string `json:"storage"`
	}{Storage: storage})
}

// BoundaryChangedPayload builds a studentBoundaryChanged envelope. A nil
// boundary means students follow the instructor's live position.
func (b *CommandBuilder) BoundaryChangedPayload(boundary *SlideIndices, instructorIndices SlideIndices) Envelope {
	payload, _ := json.Marshal(struct {
		Reason          string        `json:"reason"`
		StudentBoundary *SlideIndices `json:"studentBoundary"`
		Indices         SlideIndices  `json:"indices"`
	}{
		Reason:          BoundaryReasonInstructorSet,
		StudentBoundary: boundary,
		Indices:         instructorIndices,
	})

	return Envelope{
		Type:    MessageType,
		Version: ProtocolVersion,
		Action:  ActionStudentBoundaryChanged,
		DeckID:  b.deckID,
		Role:    RoleInstructor,
		Source:  HostSource,
		TS:      b.now(),
		Payload: payload,
	}
}

// BoundaryClearedPayload announces that the boundary was cleared while the
// instructor stood at instructorIndices.
func (b *CommandBuilder) BoundaryClearedPayload(instructorIndices SlideIndices) Envelope {
	return b.BoundaryChangedPayload(nil, instructorIndices)
}

// AttachInstructorIndicesToBoundaryChangePayload returns a copy of a
// studentBoundaryChanged envelope whose payload.indices is the instructor's
// position, so recipients know where the instructor stood even when the
// boundary is null.
func AttachInstructorIndicesToBoundaryChangePayload(env Envelope, instructorIndices SlideIndices) (Envelope, bool) {
	if env.Action != ActionStudentBoundaryChanged {
		return env, false
	}

	payload := clonePayload(env.Payload)
	if !gjson.ParseBytes(payload).IsObject() {
		payload = []byte(`{}`)
	}
	payload, err := sjson.SetBytes(payload, "indices", instructorIndices)
	if err != nil {
		return env, false
	}
	return env.WithPayload(payload), true
}
