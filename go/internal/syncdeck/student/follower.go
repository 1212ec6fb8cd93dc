package student

import (
	"github.com/mcdev12/activebits/go/internal/syncdeck/protocol"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Follower is the per-connection state of one student deck. It turns session
// broadcasts into deck commands and tracks whether the student has backed
// away from the instructor. It is not safe for concurrent use.
type Follower struct {
	builder *protocol.CommandBuilder
	optOut  BacktrackOptOut

	instructor  *protocol.SlideIndices
	position    *protocol.SlideIndices
	maxPosition *protocol.SlideIndices
}

// NewFollower returns a follower for a freshly connected student.
func NewFollower(builder *protocol.CommandBuilder) *Follower {
	return &Follower{builder: builder}
}

// Join returns the commands a student deck needs when it (re)initializes.
func (f *Follower) Join() []protocol.Envelope {
	return []protocol.Envelope{f.builder.StudentRoleCommand()}
}

// OptedOut reports whether instructor updates are currently withheld.
func (f *Follower) OptedOut() bool { return f.optOut.Active }

// InstructorIndices returns the instructor's last known position.
func (f *Follower) InstructorIndices() (protocol.SlideIndices, bool) {
	if f.instructor == nil {
		return protocol.SlideIndices{}, false
	}
	return *f.instructor, true
}

// HandleBroadcast translates one session broadcast into deck commands.
func (f *Follower) HandleBroadcast(env protocol.Envelope) []protocol.Envelope {
	if relay, ok := protocol.ToChalkboardRelayCommand(env); ok {
		return []protocol.Envelope{relay}
	}

	p, ok := protocol.ParsePayload(env)
	if !ok {
		return nil
	}

	var out []protocol.Envelope
	switch payload := p.(type) {
	case protocol.BoundaryChangedPayload:
		if payload.Indices != nil {
			idx := payload.Indices.SlideIndices
			f.instructor = &idx
		}
		if cmd, ok := ToRevealBoundaryCommandMessage(env, f.instructor, f.position); ok {
			out = append(out, f.boundary(cmd))
		}

	case protocol.StatePayload:
		if pos, ok := payload.Position(); ok && env.Role == protocol.RoleInstructor {
			f.instructor = &pos
		}
		if cmd, ok := ToRevealBoundaryCommandMessage(env, f.instructor, nil); ok {
			out = append(out, f.boundary(cmd))
		}
		if ShouldSuppressForwardInstructorSync(f.optOut.Active, f.position, f.instructor) {
			return out
		}
		if cmd, ok := ToRevealCommandMessage(env); ok {
			out = append(out, cmd)
		}

	case protocol.CommandPayload:
		if payload.Name == protocol.CommandSetStudentBoundary && gjson.GetBytes(payload.Payload, "syncToBoundary").Bool() {
			f.optOut.Active = false
		}
		if cmd, ok := ToRevealCommandMessage(env); ok {
			out = append(out, cmd)
		}
	}
	return out
}

// boundary keeps an opted-out student where it is: the boundary still moves,
// but it does not drag the deck along.
func (f *Follower) boundary(cmd protocol.Envelope) protocol.Envelope {
	if !f.optOut.Active || !gjson.GetBytes(cmd.Payload, "payload.syncToBoundary").Bool() {
		return cmd
	}
	payload, err := sjson.SetBytes([]byte(string(cmd.Payload)), "payload.syncToBoundary", false)
	if err != nil {
		return cmd
	}
	return cmd.WithPayload(payload)
}

// HandleLocal processes a message from the student's own deck. Student
// messages are never forwarded to the session; the returned envelopes go
// back to the same deck.
func (f *Follower) HandleLocal(raw []byte) []protocol.Envelope {
	env, ok := protocol.Decode(raw)
	if !ok {
		return nil
	}

	switch env.Action {
	case protocol.ActionReady:
		if pos, ok := protocol.ExtractIndices(raw); ok {
			f.observePosition(pos)
		}
		return f.Join()
	case protocol.ActionState:
		if pos, ok := protocol.ExtractIndices(raw); ok {
			f.observePosition(pos)
		}
	}
	return nil
}

func (f *Follower) observePosition(pos protocol.SlideIndices) {
	prev := f.position

	switch {
	case f.optOut.Active:
		if ShouldResetBacktrackOptOutByMaxPosition(true, &pos, f.maxPosition) {
			f.optOut.Active = false
		}
	case prev != nil && pos.Before(*prev) && f.instructor != nil && pos.Before(*f.instructor):
		f.optOut.Active = true
	}

	f.position = &pos
	if f.maxPosition == nil || f.maxPosition.Before(pos) {
		furthest := pos
		f.maxPosition = &furthest
	}
}
