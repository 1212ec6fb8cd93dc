package student

import (
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/activebits/go/internal/syncdeck/host"
	"github.com/mcdev12/activebits/go/internal/syncdeck/protocol"
	"github.com/tidwall/gjson"
)

func newTestBuilder() *protocol.CommandBuilder {
	return protocol.NewCommandBuilder(clockwork.NewFakeClockAt(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)))
}

func instructorState(h, v, f int) protocol.Envelope {
	return envelope(protocol.ActionState, protocol.RoleInstructor,
		fmt.Sprintf(`{"indices":{"h":%d,"v":%d,"f":%d},"revealState":{"indexh":%d,"indexv":%d,"indexf":%d}}`, h, v, f, h, v, f))
}

func localState(h, v, f int) []byte {
	return []byte(fmt.Sprintf(`{"type":"reveal-sync","action":"state","role":"student","payload":{"indices":{"h":%d,"v":%d,"f":%d}}}`, h, v, f))
}

func names(envs []protocol.Envelope) []string {
	out := make([]string, 0, len(envs))
	for _, env := range envs {
		out = append(out, gjson.GetBytes(env.Payload, "name").String())
	}
	return out
}

func TestFollowerJoin(t *testing.T) {
	f := NewFollower(newTestBuilder())
	join := f.Join()
	if len(join) != 1 || gjson.GetBytes(join[0].Payload, "payload.role").String() != "student" {
		t.Fatalf("expected student role command, got %+v", join)
	}
	if reply := f.HandleLocal([]byte(`{"type":"reveal-sync","action":"ready","role":"student","payload":{}}`)); len(reply) != 1 {
		t.Fatalf("expected role command on deck ready, got %d", len(reply))
	}
}

func TestFollowerAppliesInstructorState(t *testing.T) {
	f := NewFollower(newTestBuilder())

	out := f.HandleBroadcast(instructorState(2, 0, 0))
	got := names(out)
	if len(got) != 2 || got[0] != protocol.CommandSetStudentBoundary || got[1] != protocol.CommandSetState {
		t.Fatalf("expected boundary then setState, got %v", got)
	}
	if idx, ok := f.InstructorIndices(); !ok || idx != (protocol.SlideIndices{H: 2}) {
		t.Fatalf("expected instructor tracked, got %+v", idx)
	}
}

func TestFollowerBacktrackOptOut(t *testing.T) {
	f := NewFollower(newTestBuilder())

	f.HandleBroadcast(instructorState(3, 0, 0))
	f.HandleLocal(localState(3, 0, 0))
	if f.OptedOut() {
		t.Fatal("expected following student")
	}

	f.HandleLocal(localState(1, 0, 0))
	if !f.OptedOut() {
		t.Fatal("expected opt-out after moving behind the instructor")
	}

	out := f.HandleBroadcast(instructorState(4, 0, 0))
	if got := names(out); len(got) != 1 || got[0] != protocol.CommandSetStudentBoundary {
		t.Fatalf("expected only the boundary while opted out, got %v", got)
	}
	if gjson.GetBytes(out[0].Payload, "payload.syncToBoundary").Bool() {
		t.Fatal("expected boundary not to drag an opted-out student")
	}

	f.HandleLocal(localState(2, 0, 0))
	if !f.OptedOut() {
		t.Fatal("expected opt-out to hold below the furthest position")
	}
	f.HandleLocal(localState(3, 0, 0))
	if f.OptedOut() {
		t.Fatal("expected opt-out cleared at the furthest position")
	}

	out = f.HandleBroadcast(instructorState(5, 0, 0))
	if got := names(out); len(got) != 2 || got[1] != protocol.CommandSetState {
		t.Fatalf("expected instructor sync to resume, got %v", got)
	}
}

func TestFollowerBackingUpAheadOfInstructorIsNotOptOut(t *testing.T) {
	f := NewFollower(newTestBuilder())
	f.HandleBroadcast(instructorState(1, 0, 0))
	f.HandleLocal(localState(4, 0, 0))
	f.HandleLocal(localState(2, 0, 0))
	if f.OptedOut() {
		t.Fatal("expected no opt-out while still ahead of the instructor")
	}
}

func TestFollowerForceSyncClearsOptOut(t *testing.T) {
	b := newTestBuilder()
	f := NewFollower(b)
	f.HandleBroadcast(instructorState(3, 0, 0))
	f.HandleLocal(localState(3, 0, 0))
	f.HandleLocal(localState(0, 0, 0))
	if !f.OptedOut() {
		t.Fatal("expected opt-out")
	}

	out := f.HandleBroadcast(b.ForceSyncBoundaryCommand(protocol.SlideIndices{H: 3}))
	if f.OptedOut() {
		t.Fatal("expected force sync to clear opt-out")
	}
	if len(out) != 1 || !gjson.GetBytes(out[0].Payload, "payload.syncToBoundary").Bool() {
		t.Fatalf("expected force sync forwarded, got %+v", out)
	}
}

func TestFollowerRelaysChalkboard(t *testing.T) {
	f := NewFollower(newTestBuilder())
	out := f.HandleBroadcast(envelope(protocol.ActionCommand, protocol.RoleInstructor, `{"name":"chalkboardStroke","payload":{"x":1}}`))
	if got := names(out); len(got) != 1 || got[0] != protocol.CommandChalkboardStroke {
		t.Fatalf("expected chalkboard relay, got %v", got)
	}
}

func TestFollowerBoundaryChangeUsesAttachedInstructorIndices(t *testing.T) {
	f := NewFollower(newTestBuilder())
	out := f.HandleBroadcast(envelope(protocol.ActionStudentBoundaryChanged, protocol.RoleInstructor,
		`{"reason":"instructorSet","studentBoundary":null,"indices":{"h":6,"v":0,"f":2}}`))
	if len(out) != 1 {
		t.Fatalf("expected boundary command, got %d", len(out))
	}
	if gjson.GetBytes(out[0].Payload, "payload.indices.h").Int() != 6 || !gjson.GetBytes(out[0].Payload, "payload.syncToBoundary").Bool() {
		t.Fatalf("expected sync to instructor position, got %s", out[0].Payload)
	}
}

func TestInstructorNavigationReachesStudentDeck(t *testing.T) {
	b := newTestBuilder()
	manager := host.NewSession("session-1", b)
	f := NewFollower(b)

	first := instructorState(1, 0, 0)
	manager.HandleInstructor(first.Raw())

	nav, ok := manager.Navigate(protocol.DirectionLeft)
	if !ok {
		t.Fatal("expected navigation to be allowed")
	}
	target, ok := protocol.ExtractIndices(nav.ToDeck[0].Raw())
	if !ok || target != (protocol.SlideIndices{H: 0, V: 0, F: 0}) {
		t.Fatalf("expected planner to move to origin, got %+v", target)
	}

	// The instructor's deck applies the command and reports its new state.
	landed := manager.HandleInstructor(instructorState(target.H, target.V, target.F).Raw())
	if len(landed.Broadcast) != 1 {
		t.Fatalf("expected state broadcast, got %+v", landed)
	}

	var setState protocol.Envelope
	for _, cmd := range f.HandleBroadcast(landed.Broadcast[0]) {
		if gjson.GetBytes(cmd.Payload, "name").String() == protocol.CommandSetState {
			setState = cmd
		}
	}
	state := gjson.GetBytes(setState.Payload, "payload.state")
	if !state.Exists() {
		t.Fatal("expected setState command for the student deck")
	}
	if state.Get("indexh").Int() != 0 || state.Get("indexv").Int() != 0 || state.Get("indexf").Int() != 0 {
		t.Fatalf("expected origin, got %s", state.Raw)
	}
}

func TestLateJoinerLandsOnForcedBoundary(t *testing.T) {
	b := newTestBuilder()
	manager := host.NewSession("session-1", b)
	manager.HandleInstructor(instructorState(2, 0, 0).Raw())
	manager.ForceSyncBoundary(protocol.IndexSpec{SlideIndices: protocol.SlideIndices{H: 5}})
	manager.HandleInstructor(instructorState(3, 0, 0).Raw())

	late := NewFollower(b)
	var last protocol.Envelope
	for _, env := range manager.CatchUp() {
		for _, cmd := range late.HandleBroadcast(env) {
			p := gjson.ParseBytes(cmd.Payload)
			if p.Get("name").String() == protocol.CommandSetState && p.Get("payload.state.indexh").Int() == 3 {
				t.Fatalf("expected suppressed position withheld, got %s", cmd.Payload)
			}
			last = cmd
		}
	}

	p := gjson.ParseBytes(last.Payload)
	if p.Get("name").String() != protocol.CommandSetStudentBoundary ||
		p.Get("payload.indices.h").Int() != 5 ||
		!p.Get("payload.syncToBoundary").Bool() {
		t.Fatalf("expected final command to sync onto h=5, got %s", last.Payload)
	}
}
