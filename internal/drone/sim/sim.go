// Package sim implements drone.Vehicle as a kinematic point vehicle: it
// flies toward the last commanded setpoint at a fixed speed on a fixed
// tick. It backs the pilot's "sim" driver for SITL-free dry runs and is
// the fixture the mission tests fly against.
package sim

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rollpitchyall/printinflight/internal/drone"
	"github.com/rollpitchyall/printinflight/internal/nav"
)

const (
	defaultSpeed = 2.0 // m/s
	defaultTick  = 10 * time.Millisecond
)

// Config tunes the simulated vehicle.
type Config struct {
	// Start is the initial NED position.
	Start nav.PositionNED

	// Speed is the cruise speed toward the commanded setpoint in m/s.
	// Zero means 2 m/s.
	Speed float64

	// Tick is the physics step period. Zero means 10ms.
	Tick time.Duration

	// Battery is the initial remaining fraction. Zero means full.
	Battery float64

	// DrainPerSecond is the battery fraction consumed per second.
	DrainPerSecond float64

	// Mode is the initial flight mode. Empty means "POSCTL".
	Mode drone.Mode
}

// Vehicle is a simulated drone. All methods are safe for concurrent use.
type Vehicle struct {
	speed float64
	tick  time.Duration
	drain float64

	mu       sync.Mutex
	pos      nav.PositionNED
	mode     drone.Mode
	battery  float64
	setpoint *drone.Setpoint
	posErr   error

	setpoints atomic.Int64
	rtls      atomic.Int64
	lands     atomic.Int64

	running atomic.Bool
	stop    chan struct{}
	done    chan struct{}
}

// New creates a simulated vehicle. Call Start to begin the physics loop.
func New(cfg Config) *Vehicle {
	speed := cfg.Speed
	if speed <= 0 {
		speed = defaultSpeed
	}
	tick := cfg.Tick
	if tick <= 0 {
		tick = defaultTick
	}
	battery := cfg.Battery
	if battery <= 0 {
		battery = 1.0
	}
	mode := cfg.Mode
	if mode == "" {
		mode = "POSCTL"
	}

	return &Vehicle{
		speed:   speed,
		tick:    tick,
		drain:   cfg.DrainPerSecond,
		pos:     cfg.Start,
		mode:    mode,
		battery: battery,
	}
}

// Start begins the physics loop. Starting an already running vehicle is a
// no-op.
func (v *Vehicle) Start() {
	if !v.running.CompareAndSwap(false, true) {
		return
	}

	v.stop = make(chan struct{})
	v.done = make(chan struct{})
	go v.run()
}

// Stop halts the physics loop and waits for it to exit.
func (v *Vehicle) Stop() {
	if !v.running.CompareAndSwap(true, false) {
		return
	}

	close(v.stop)
	<-v.done
}

func (v *Vehicle) run() {
	defer close(v.done)

	ticker := time.NewTicker(v.tick)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-v.stop:
			return
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			v.step(dt)
		}
	}
}

func (v *Vehicle) step(dt float64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.drain > 0 {
		v.battery -= v.drain * dt
		if v.battery < 0 {
			v.battery = 0
		}
	}

	if v.setpoint == nil {
		return
	}

	target := v.setpoint.Position
	remaining := v.pos.Distance(target)
	maxMove := v.speed * dt
	if remaining <= maxMove {
		v.pos = target
		return
	}

	// Constant-speed move along the remaining vector.
	v.pos = nav.LookAhead(v.pos, target, 1.0, maxMove)
}

// Position implements drone.Vehicle.
func (v *Vehicle) Position() (nav.PositionNED, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.posErr != nil {
		return nav.PositionNED{}, v.posErr
	}
	return v.pos, nil
}

// Mode implements drone.Vehicle.
func (v *Vehicle) Mode() (drone.Mode, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mode, nil
}

// Battery implements drone.Vehicle.
func (v *Vehicle) Battery() (float64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.battery, nil
}

// SendSetpoint implements drone.Vehicle. The vehicle flies toward the most
// recent setpoint.
func (v *Vehicle) SendSetpoint(sp drone.Setpoint) error {
	v.mu.Lock()
	v.setpoint = &sp
	v.mu.Unlock()

	v.setpoints.Add(1)
	return nil
}

// ReturnToLaunch implements drone.Vehicle. The sim only counts the call;
// the autopilot-native behavior is outside the model.
func (v *Vehicle) ReturnToLaunch() error {
	v.rtls.Add(1)
	return nil
}

// Land implements drone.Vehicle.
func (v *Vehicle) Land() error {
	v.lands.Add(1)
	return nil
}

// SetMode changes the reported flight mode.
func (v *Vehicle) SetMode(m drone.Mode) {
	v.mu.Lock()
	v.mode = m
	v.mu.Unlock()
}

// SetBattery sets the reported battery fraction.
func (v *Vehicle) SetBattery(fraction float64) {
	v.mu.Lock()
	v.battery = fraction
	v.mu.Unlock()
}

// FailPositionReads makes Position return err until called again with nil.
func (v *Vehicle) FailPositionReads(err error) {
	v.mu.Lock()
	v.posErr = err
	v.mu.Unlock()
}

// SetpointCount returns the number of setpoints received.
func (v *Vehicle) SetpointCount() int64 { return v.setpoints.Load() }

// RTLCount returns the number of return-to-launch directives received.
func (v *Vehicle) RTLCount() int64 { return v.rtls.Load() }

// LandCount returns the number of land directives received.
func (v *Vehicle) LandCount() int64 { return v.lands.Load() }

// LastSetpoint returns the most recent setpoint, if any.
func (v *Vehicle) LastSetpoint() (drone.Setpoint, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.setpoint == nil {
		return drone.Setpoint{}, false
	}
	return *v.setpoint, true
}
