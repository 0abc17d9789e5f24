package orchestrator

import (
	"fmt"
	"time"

	"github.com/tldr-it-stepankutaj/lunapad/internal/script"
	"github.com/tldr-it-stepankutaj/lunapad/internal/xinput"
)

// Phase is the lifecycle stage of the whole session.
type Phase int

const (
	PhaseConfiguring Phase = iota
	PhaseLoading
	PhaseInit
	PhaseTick
	PhaseExit
	PhaseDrained
)

func (p Phase) String() string {
	switch p {
	case PhaseConfiguring:
		return "configuring"
	case PhaseLoading:
		return "loading"
	case PhaseInit:
		return "init"
	case PhaseTick:
		return "tick"
	case PhaseExit:
		return "exit"
	case PhaseDrained:
		return "drained"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Reason tells why a module left the registry.
type Reason string

const (
	ReasonInactive Reason = "inactive" // the module stopped itself
	ReasonError    Reason = "error"    // a handler failed
	ReasonDrained  Reason = "drained"  // the loop ended while it was still running
	ReasonReset    Reason = "reset"    // cleared by an invalid command line before it ran
)

// EventKind identifies an Event.
type EventKind int

const (
	EventPhase EventKind = iota
	EventLibraries
	EventLoaded
	EventDiscarded
	EventRejected
	EventPass
	EventRemoved
)

func (k EventKind) String() string {
	switch k {
	case EventPhase:
		return "phase"
	case EventLibraries:
		return "libraries"
	case EventLoaded:
		return "loaded"
	case EventDiscarded:
		return "discarded"
	case EventRejected:
		return "rejected"
	case EventPass:
		return "pass"
	case EventRemoved:
		return "removed"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is a lifecycle notification. Observers receive copies and must not
// call back into the orchestrator.
type Event struct {
	Kind  EventKind
	Phase Phase
	Pass  int
	At    time.Time

	Module    string
	Libraries script.Libraries
	Reason    Reason
	Err       error
	Ticks     int // ticks delivered before an EventRemoved

	// Set on EventPass.
	Remaining []string
	Snapshots map[string]xinput.Capabilities
}

// Observer receives lifecycle events on the orchestrator's goroutine.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(ev Event) { f(ev) }
