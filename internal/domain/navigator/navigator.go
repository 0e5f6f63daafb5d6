// Package navigator implements the presenter's navigation state machine.
//
// A presentation walks a flattened sequence one client at a time. Leaving the
// last client of a manager's group always passes through that group's summary
// slide, in both directions. Jumps bypass summaries.
package navigator

import (
	"fmt"

	"github.com/okian/healthreview/internal/domain/sequence"
)

// Mode is the kind of slide being shown.
type Mode int

const (
	// Viewing shows the client at Position.
	Viewing Mode = iota
	// ShowingSummary shows the summary of the group whose last client is at Position.
	ShowingSummary
	// Closed is terminal; the presentation has been exited.
	Closed
)

func (m Mode) String() string {
	switch m {
	case Viewing:
		return "viewing"
	case ShowingSummary:
		return "summary"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// State is the navigator's position. The zero value is the initial state.
type State struct {
	Mode     Mode `json:"mode"`
	Position int  `json:"position"`
}

// Initial returns Viewing(0).
func Initial() State { return State{Mode: Viewing} }

// ShowingSummary reports whether a summary slide is on screen.
func (s State) ShowingSummary() bool { return s.Mode == ShowingSummary }

// Closed reports whether the presentation has been exited.
func (s State) Closed() bool { return s.Mode == Closed }

func (s State) String() string { return fmt.Sprintf("%s(%d)", s.Mode, s.Position) }

// Event is a navigation input.
type Event interface {
	name() string
}

// Advance moves forward, interjecting a summary at group boundaries.
type Advance struct{}

// Retreat moves backward, re-entering a summary when crossing a boundary.
type Retreat struct{}

// JumpTo moves directly to Index and never shows a summary.
type JumpTo struct{ Index int }

// Exit closes the presentation.
type Exit struct{}

func (Advance) name() string { return "advance" }
func (Retreat) name() string { return "retreat" }
func (JumpTo) name() string  { return "jump" }
func (Exit) name() string    { return "exit" }

// Name returns a stable label for ev, used in logs and metrics.
func Name(ev Event) string {
	if ev == nil {
		return "none"
	}
	return ev.name()
}

// Apply returns the state after ev. It is pure: out-of-range requests and
// events on a closed state return s unchanged. A state left stale by a
// shorter sequence is clamped before ev is applied.
func Apply(s State, ev Event, seq []sequence.Entry) State {
	if s.Closed() {
		return s
	}
	if _, ok := ev.(Exit); ok {
		return State{Mode: Closed, Position: s.Position}
	}
	n := len(seq)
	if n == 0 {
		return s
	}
	s = Clamp(s, seq)

	switch e := ev.(type) {
	case Advance:
		if s.Mode == Viewing && seq[s.Position].IsLastInGroup {
			return State{Mode: ShowingSummary, Position: s.Position}
		}
		if s.Position < n-1 {
			return State{Mode: Viewing, Position: s.Position + 1}
		}
		return s

	case Retreat:
		if s.Mode == ShowingSummary {
			return State{Mode: Viewing, Position: s.Position}
		}
		if s.Position == 0 {
			return s
		}
		p := s.Position - 1
		if seq[p].IsLastInGroup {
			return State{Mode: ShowingSummary, Position: p}
		}
		return State{Mode: Viewing, Position: p}

	case JumpTo:
		if e.Index < 0 || e.Index >= n {
			return s
		}
		return State{Mode: Viewing, Position: e.Index}
	}
	return s
}

// Clamp pulls s back into range after the sequence changed length. A summary
// is dropped if its position no longer ends a group.
func Clamp(s State, seq []sequence.Entry) State {
	if s.Closed() {
		return s
	}
	if len(seq) == 0 {
		return Initial()
	}
	if s.Position >= len(seq) {
		s.Position = len(seq) - 1
	}
	if s.Position < 0 {
		s.Position = 0
	}
	if s.Mode == ShowingSummary && !seq[s.Position].IsLastInGroup {
		s.Mode = Viewing
	}
	return s
}
