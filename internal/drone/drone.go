// Package drone defines the collaborator boundary between the mission core
// and a vehicle: latest-snapshot telemetry reads plus outbound commands.
// Transport implementations live in subpackages; the core depends only on
// the Vehicle interface.
package drone

import (
	"github.com/rollpitchyall/printinflight/internal/nav"
)

// Mode is the autopilot flight mode as reported by telemetry. Only
// ModeOffboard grants this controller position authority; every other value
// means someone else is flying.
type Mode string

const ModeOffboard Mode = "OFFBOARD"

// Offboard reports whether externally supplied position commands are obeyed.
func (m Mode) Offboard() bool { return m == ModeOffboard }

// Setpoint is one outbound position command: an NED position plus the yaw
// the vehicle should face, in degrees clockwise from North.
type Setpoint struct {
	Position nav.PositionNED
	YawDeg   float64
}

// Vehicle is the telemetry and command surface the mission core runs
// against. Telemetry reads return the latest asynchronously refreshed
// snapshot; a returned error is a transient read failure (no fix yet, stale
// link) and callers retry on their next poll. Implementations must be safe
// for concurrent use: the streamer, the monitors and the controller all
// hold the same Vehicle.
type Vehicle interface {
	// Position returns the latest NED position estimate.
	Position() (nav.PositionNED, error)

	// Mode returns the latest reported flight mode.
	Mode() (Mode, error)

	// Battery returns the latest remaining battery fraction in [0, 1].
	Battery() (float64, error)

	// SendSetpoint transmits one position+yaw setpoint. A failure is
	// retryable; the next tick sends a fresh setpoint anyway.
	SendSetpoint(sp Setpoint) error

	// ReturnToLaunch asks the autopilot to fly home on its own.
	ReturnToLaunch() error

	// Land asks the autopilot to land at the current position.
	Land() error
}
