package host

import (
	"github.com/mcdev12/activebits/go/internal/syncdeck/protocol"
)

// DropReason explains why an instructor message was not broadcast.
type DropReason string

const (
	DropNone      DropReason = ""
	DropInvalid   DropReason = "invalid"
	DropRole      DropReason = "role"
	DropRestore   DropReason = "restore"
	DropBoundary  DropReason = "boundary"
	DropNoState   DropReason = "no_state"
	DropUnhandled DropReason = "unhandled"
)

// Outcome is what a single instructor message produced.
type Outcome struct {
	// Broadcast goes to every student in the session, in order.
	Broadcast []protocol.Envelope
	// ToDeck goes back to the instructor's own deck.
	ToDeck []protocol.Envelope

	StateChanged      bool
	ChalkboardChanged bool
	Dropped           DropReason
}

// Session is the manager-side state of one live deck session. It is owned by
// the manager connection and is not safe for concurrent use.
type Session struct {
	id      string
	builder *protocol.CommandBuilder

	navigator  protocol.Navigator
	restore    RestoreSuppression
	chalkboard ChalkboardSnapshotCache

	instructor *protocol.SlideIndices
	boundary   *protocol.SlideIndices
	// forced is set while the boundary came from ForceSyncBoundary, so late
	// joiners are moved onto it like everyone else was.
	forced bool
	// lastState is the last state students received. Suppressed instructor
	// states only move instructor.
	lastState *protocol.Envelope
	paused    bool
}

// Option configures a Session.
type Option func(*Session)

// WithLastState seeds the last known full state.
func WithLastState(env protocol.Envelope) Option {
	return func(s *Session) {
		if env.Action != protocol.ActionState {
			return
		}
		s.lastState = &env
		if p, ok := protocol.ParsePayload(env); ok {
			state := p.(protocol.StatePayload)
			if state.Paused != nil {
				s.paused = *state.Paused
			}
		}
	}
}

// WithChalkboardSnapshot seeds the chalkboard snapshot cache.
func WithChalkboardSnapshot(storage string) Option {
	return func(s *Session) {
		s.chalkboard.Seed(storage)
	}
}

// NewSession creates the manager state for session id.
func NewSession(id string, builder *protocol.CommandBuilder, opts ...Option) *Session {
	s := &Session{id: id, builder: builder}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Restore silently walks the instructor's deck back to target. Outbound state
// is withheld until the deck lands on it.
func (s *Session) Restore(target protocol.SlideIndices) {
	s.restore.Begin(target)
}

// Restoring reports whether restore suppression is active.
func (s *Session) Restoring() bool { return s.restore.Active }

// InstructorIndices returns the instructor's last known position.
func (s *Session) InstructorIndices() (protocol.SlideIndices, bool) {
	if s.instructor == nil {
		return protocol.SlideIndices{}, false
	}
	return *s.instructor, true
}

// Boundary returns the explicit student boundary, if any.
func (s *Session) Boundary() (protocol.SlideIndices, bool) {
	if s.boundary == nil {
		return protocol.SlideIndices{}, false
	}
	return *s.boundary, true
}

// LastState returns the most recent full state envelope.
func (s *Session) LastState() (protocol.Envelope, bool) {
	if s.lastState == nil {
		return protocol.Envelope{}, false
	}
	return *s.lastState, true
}

// Paused reports the explicit pause flag.
func (s *Session) Paused() bool { return s.paused }

// ChalkboardSnapshot returns the cached chalkboard storage.
func (s *Session) ChalkboardSnapshot() string { return s.chalkboard.Snapshot() }

// HandleInstructor routes one message from the instructor's deck.
func (s *Session) HandleInstructor(raw []byte) Outcome {
	env, ok := protocol.Decode(raw)
	if !ok {
		return Outcome{Dropped: DropInvalid}
	}
	if env.Role != protocol.RoleInstructor {
		return Outcome{Dropped: DropRole}
	}
	s.navigator.Observe(raw)

	if relay, ok := protocol.ToChalkboardRelayCommand(env); ok {
		out, changed := s.chalkboard.Relay(relay)
		return Outcome{Broadcast: []protocol.Envelope{out}, ChalkboardChanged: changed}
	}

	p, ok := protocol.ParsePayload(env)
	if !ok {
		return Outcome{Dropped: DropInvalid}
	}

	switch payload := p.(type) {
	case protocol.ReadyPayload:
		return s.handleReady(payload)
	case protocol.StatePayload:
		return s.handleState(env, payload)
	case protocol.BoundaryChangedPayload:
		return s.handleBoundaryChanged(env, payload)
	case protocol.PauseChangedPayload:
		return s.handlePause(env.Action, payload)
	case protocol.CommandPayload:
		return Outcome{Broadcast: []protocol.Envelope{env}}
	}
	return Outcome{Dropped: DropUnhandled}
}

func (s *Session) handleReady(p protocol.ReadyPayload) Outcome {
	out := Outcome{ToDeck: []protocol.Envelope{s.builder.InstructorRoleCommand()}}
	if p.Indices != nil {
		idx := *p.Indices
		s.instructor = &idx
	}
	if !s.restore.Active {
		return out
	}
	if p.Indices != nil && *p.Indices == s.restore.TargetIndices {
		// The deck already sits on the target and will not emit a state for it.
		s.restore.Active = false
		return out
	}
	out.ToDeck = append(out.ToDeck, s.builder.SetStateCommand(s.restore.TargetIndices))
	return out
}

func (s *Session) handleState(env protocol.Envelope, p protocol.StatePayload) Outcome {
	pos, ok := p.Position()
	if !ok {
		return Outcome{Dropped: DropInvalid}
	}
	s.instructor = &pos

	decision := s.restore.Gate(pos)
	if decision.ShouldDrop && !decision.ShouldRelease {
		return Outcome{Dropped: DropRestore}
	}

	stamped, _ := protocol.IncludePausedInStateEnvelope(env, s.paused)
	out := Outcome{StateChanged: true}

	if decision.ShouldDrop {
		s.lastState = &stamped
		out.Dropped = DropRestore
		return out
	}

	if s.boundary != nil {
		if ShouldSuppressInstructorStateBroadcast(pos, s.boundary) {
			out.Dropped = DropBoundary
			return out
		}
		s.clearBoundary()
		out.Broadcast = append(out.Broadcast, s.builder.BoundaryClearedPayload(pos))
	}

	s.lastState = &stamped
	out.Broadcast = append(out.Broadcast, stamped)
	return out
}

func (s *Session) handleBoundaryChanged(env protocol.Envelope, p protocol.BoundaryChangedPayload) Outcome {
	s.forced = false
	if p.StudentBoundary != nil {
		b := p.StudentBoundary.SlideIndices.WithUnlimitedFragment()
		s.boundary = &b
	} else {
		s.boundary = nil
	}

	if s.instructor == nil {
		return Outcome{Broadcast: []protocol.Envelope{env}}
	}
	attached, ok := protocol.AttachInstructorIndicesToBoundaryChangePayload(env, *s.instructor)
	if !ok {
		return Outcome{Dropped: DropInvalid}
	}
	return Outcome{Broadcast: []protocol.Envelope{attached}}
}

func (s *Session) handlePause(action protocol.Action, p protocol.PauseChangedPayload) Outcome {
	s.paused = p.Paused
	snap, ok := protocol.BuildPausedSnapshotFromAction(action, s.lastState)
	if !ok {
		return Outcome{Dropped: DropNoState}
	}
	s.lastState = &snap
	return Outcome{Broadcast: []protocol.Envelope{snap}, StateChanged: true}
}

// Navigate asks the instructor's deck to move one step. It returns false when
// the position is unknown, the deck reported the move unavailable, or the
// move would leave the deck.
func (s *Session) Navigate(direction protocol.Direction) (Outcome, bool) {
	if s.instructor == nil || !s.navigator.Allows(direction) {
		return Outcome{}, false
	}
	next, ok := protocol.BuildDirectionalSlideIndices(*s.instructor, direction)
	if !ok {
		return Outcome{}, false
	}
	return Outcome{ToDeck: []protocol.Envelope{s.builder.SetStateCommand(next)}}, true
}

// ForceSyncBoundary sets an explicit boundary and moves every student there.
// A boundary given without a fragment index covers the whole slide.
func (s *Session) ForceSyncBoundary(boundary protocol.IndexSpec) Outcome {
	b := boundary.SlideIndices
	if !boundary.HasF {
		b = b.WithUnlimitedFragment()
	}
	s.boundary = &b
	s.forced = true
	return Outcome{Broadcast: []protocol.Envelope{s.builder.ForceSyncBoundaryCommand(b)}}
}

// ClearBoundary removes the explicit boundary so students follow the
// instructor's live position again.
func (s *Session) ClearBoundary() Outcome {
	s.clearBoundary()
	out := Outcome{Broadcast: []protocol.Envelope{s.builder.ClearBoundaryCommand()}}
	if s.instructor != nil {
		out.Broadcast = append(out.Broadcast, s.builder.BoundaryClearedPayload(*s.instructor))
	}
	return out
}

func (s *Session) clearBoundary() {
	s.boundary = nil
	s.forced = false
}

// CatchUp returns what a late-joining student needs, in broadcast form. It
// replays what connected students already saw, never a suppressed state.
func (s *Session) CatchUp() []protocol.Envelope {
	var out []protocol.Envelope
	if s.lastState != nil {
		out = append(out, *s.lastState)
	}
	switch {
	case s.boundary != nil && s.forced:
		out = append(out, s.builder.ForceSyncBoundaryCommand(*s.boundary))
	case s.boundary != nil && s.instructor != nil:
		out = append(out, s.builder.BoundaryChangedPayload(s.boundary, *s.instructor))
	}
	if storage := s.chalkboard.Snapshot(); storage != "" {
		out = append(out, s.builder.ChalkboardStateCommand(storage))
	}
	return out
}
