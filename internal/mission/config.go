package mission

import "time"

// Config tunes the mission controller, streamer and monitors. Zero values
// fall back to the defaults below.
type Config struct {
	// StreamPeriod is the setpoint streamer tick. It must stay frequent
	// enough to satisfy the autopilot's offboard keep-alive window.
	StreamPeriod time.Duration

	// LookAheadFrac is the fraction of the remaining vector commanded ahead
	// of the vehicle each tick.
	LookAheadFrac float64

	// MaxStep caps the commanded per-tick displacement in meters, which
	// together with StreamPeriod bounds the commanded velocity.
	MaxStep float64

	// ArrivalThreshold is the waypoint arrival distance in meters.
	ArrivalThreshold float64

	// ArrivalPollInterval is how often the controller checks for arrival.
	ArrivalPollInterval time.Duration

	// AuthorityPollInterval is the authority monitor cadence.
	AuthorityPollInterval time.Duration

	// BatteryPollInterval is the battery monitor cadence.
	BatteryPollInterval time.Duration

	// BatteryWarnLevel logs a warning when the remaining fraction drops
	// below it.
	BatteryWarnLevel float64

	// BatteryCriticalLevel aborts the mission and requests RTL when the
	// remaining fraction reaches it.
	BatteryCriticalLevel float64

	// TelemetryFailureLimit is the number of consecutive transient
	// telemetry read failures tolerated before the controller treats the
	// link as lost and aborts. Stale telemetry is as dangerous as lost
	// authority, so the abort reason is AbortAuthorityLost.
	TelemetryFailureLimit int

	// ReturnHome flies back to the NED origin and lands after the last
	// waypoint.
	ReturnHome bool

	// HomeDown is the down coordinate held while returning home. Zero is
	// treated as unset and falls back to the default; a hold at exactly
	// the launch altitude needs a small non-zero offset.
	HomeDown float64

	// HomeThreshold is the arrival threshold for the return-home leg.
	HomeThreshold float64
}

// DefaultConfig returns the stock mission tuning.
func DefaultConfig() Config {
	return Config{
		StreamPeriod:          50 * time.Millisecond,
		LookAheadFrac:         0.2,
		MaxStep:               1.0,
		ArrivalThreshold:      0.15,
		ArrivalPollInterval:   20 * time.Millisecond,
		AuthorityPollInterval: 200 * time.Millisecond,
		BatteryPollInterval:   5 * time.Second,
		BatteryWarnLevel:      0.2,
		BatteryCriticalLevel:  0.1,
		TelemetryFailureLimit: 25,
		ReturnHome:            true,
		HomeDown:              -1.0,
		HomeThreshold:         0.5,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.StreamPeriod <= 0 {
		c.StreamPeriod = def.StreamPeriod
	}
	if c.LookAheadFrac <= 0 {
		c.LookAheadFrac = def.LookAheadFrac
	}
	if c.MaxStep <= 0 {
		c.MaxStep = def.MaxStep
	}
	if c.ArrivalThreshold <= 0 {
		c.ArrivalThreshold = def.ArrivalThreshold
	}
	if c.ArrivalPollInterval <= 0 {
		c.ArrivalPollInterval = def.ArrivalPollInterval
	}
	if c.AuthorityPollInterval <= 0 {
		c.AuthorityPollInterval = def.AuthorityPollInterval
	}
	if c.BatteryPollInterval <= 0 {
		c.BatteryPollInterval = def.BatteryPollInterval
	}
	if c.BatteryWarnLevel <= 0 {
		c.BatteryWarnLevel = def.BatteryWarnLevel
	}
	if c.BatteryCriticalLevel <= 0 {
		c.BatteryCriticalLevel = def.BatteryCriticalLevel
	}
	if c.TelemetryFailureLimit <= 0 {
		c.TelemetryFailureLimit = def.TelemetryFailureLimit
	}
	if c.HomeDown == 0 {
		c.HomeDown = def.HomeDown
	}
	if c.HomeThreshold <= 0 {
		c.HomeThreshold = def.HomeThreshold
	}
	return c
}
