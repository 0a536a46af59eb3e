package mission

import (
	"time"

	"github.com/rollpitchyall/printinflight/internal/nav"
)

// Phase is the mission state machine phase. Completed and Aborted are
// terminal; neither transitions back to Active.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingAuthority
	PhaseActive
	PhaseCompleted
	PhaseAborted
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseAwaitingAuthority:
		return "AWAITING_AUTHORITY"
	case PhaseActive:
		return "ACTIVE"
	case PhaseCompleted:
		return "COMPLETED"
	case PhaseAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// State is a snapshot of the mission. It is mutated only by the
// controller's own task; concurrent observers get copies through
// Controller.State.
type State struct {
	Phase           Phase
	CurrentIndex    int
	LastAbortReason AbortReason
}

// Event is a progress notification emitted by the controller: phase
// transitions, waypoint arrivals and the point of interruption. Waypoint is
// set for arrival and interruption events.
type Event struct {
	Time     time.Time
	Phase    Phase
	Waypoint *nav.Waypoint
	Progress float64
	Detail   string
}

// Result summarizes a finished mission attempt.
type Result struct {
	Phase       Phase
	AbortReason AbortReason

	// Interrupted is the waypoint in progress when the mission aborted
	// mid-flight, nil otherwise. A new mission can be planned from its Row.
	Interrupted *nav.Waypoint

	// Visited is the number of waypoints reached.
	Visited int
}
