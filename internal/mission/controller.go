// Package mission implements the waypoint mission state machine: a single
// control task that acquires offboard authority, drives the waypoint
// sequence through a fixed-cadence setpoint streamer, and reacts to a
// one-shot abort signal shared with two independent safety monitors.
//
// The concurrency model is deliberately narrow: mission state is mutated
// only by the controller's task, the monitors and streamer communicate with
// it exclusively through the AbortSignal and latest-snapshot telemetry
// reads, and no task ever blocks another on shared state.
package mission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rollpitchyall/printinflight/internal/drone"
	"github.com/rollpitchyall/printinflight/internal/nav"
)

// EventFunc receives progress events from the controller's task. It must
// not block for long; the arrival loop calls it inline.
type EventFunc func(Event)

// WithLogger sets the controller's logger.
func WithLogger(logger *slog.Logger) func(*Controller) {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithEventFunc registers a progress event callback.
func WithEventFunc(fn EventFunc) func(*Controller) {
	return func(c *Controller) {
		c.events = fn
	}
}

// Controller owns a single mission attempt over a loaded plan. It is
// single-use: a terminated mission can only be restarted as a brand-new
// Controller with a fresh abort signal and fresh state.
type Controller struct {
	vehicle drone.Vehicle
	plan    nav.Plan
	cfg     Config
	logger  *slog.Logger
	events  EventFunc

	started atomic.Bool

	mu    sync.Mutex
	state State
}

// New creates a mission controller for a validated plan.
func New(vehicle drone.Vehicle, plan nav.Plan, cfg Config, options ...func(*Controller)) (*Controller, error) {
	if len(plan) == 0 {
		return nil, errors.New("mission plan is empty")
	}

	c := Controller{
		vehicle: vehicle,
		plan:    plan,
		cfg:     cfg.withDefaults(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&c)
	}

	return &c, nil
}

// State returns a snapshot of the mission state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setPhase(phase Phase, detail string) {
	c.mu.Lock()
	c.state.Phase = phase
	c.mu.Unlock()

	c.emit(Event{Time: time.Now(), Phase: phase, Detail: detail})
}

func (c *Controller) setCurrentIndex(i int) {
	c.mu.Lock()
	c.state.CurrentIndex = i
	c.mu.Unlock()
}

func (c *Controller) emit(ev Event) {
	if c.events != nil {
		c.events(ev)
	}
}

// Run executes the mission to termination. Cancelling ctx fires the abort
// signal with AbortUserCancelled. Safety aborts (authority loss, critical
// battery, stale telemetry) are expected terminations, reported through the
// Result rather than as errors; the error return covers misuse only.
func (c *Controller) Run(ctx context.Context) (*Result, error) {
	if !c.started.CompareAndSwap(false, true) {
		return nil, errors.New("controller already ran; start a fresh mission")
	}

	abort := NewAbortSignal()

	// Child tasks live on runCtx. The parent ctx only ever reaches them as
	// an abort: cancellation is one-directional and permanent.
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case <-ctx.Done():
			abort.Fire(AbortUserCancelled)
		case <-runCtx.Done():
		case <-abort.Done():
		}
	}()

	c.setPhase(PhaseAwaitingAuthority, "streaming hold setpoint, waiting for offboard control")
	start, ok := c.awaitAuthority(abort)
	if !ok {
		return c.finishAborted(abort, 0, nil), nil
	}

	c.setPhase(PhaseActive, "offboard has taken control, starting waypoint sequence")

	streamer := newStreamer(c.vehicle, c.cfg, c.logger)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		streamer.run(runCtx, abort)
	}()
	go func() {
		defer wg.Done()
		watchAuthority(runCtx, c.vehicle, abort, c.cfg.AuthorityPollInterval, c.logger)
	}()
	go func() {
		defer wg.Done()
		watchBattery(runCtx, c.vehicle, abort, c.cfg, c.logger)
	}()

	visited := 0
	prev := start
	var interrupted *nav.Waypoint

	for i := range c.plan {
		wp := c.plan[i]
		c.setCurrentIndex(i)

		yaw := nav.HeadingDeg(prev, wp.Position)
		c.logger.Info(fmt.Sprintf("waypoint %d: N=%gm, E=%gm, D=%gm, yaw=%.1f°",
			wp.Index, wp.Position.North, wp.Position.East, wp.Position.Down, yaw))
		streamer.setLeg(wp.Position, yaw)

		if !c.awaitArrival(abort, wp.Position, c.cfg.ArrivalThreshold) {
			interrupted = &wp
			break
		}

		visited++
		prev = wp.Position
		c.emit(Event{
			Time:     time.Now(),
			Phase:    PhaseActive,
			Waypoint: &wp,
			Progress: float64(visited) / float64(len(c.plan)),
			Detail:   fmt.Sprintf("reached waypoint %d of %d", wp.Index, len(c.plan)),
		})
	}

	if interrupted == nil && !abort.Fired() && c.cfg.ReturnHome {
		c.returnHomeAndLand(streamer, abort)
	}

	cancel()
	wg.Wait()

	if abort.Fired() {
		return c.finishAborted(abort, visited, interrupted), nil
	}

	c.setPhase(PhaseCompleted, fmt.Sprintf("mission completed, %d waypoints visited", visited))
	return &Result{Phase: PhaseCompleted, Visited: visited}, nil
}

// awaitAuthority streams a neutral hold setpoint so the autopilot sees
// valid offboard commands, without advancing the mission, until the
// operator hands over control. Returns the hold position, which seeds the
// first leg's yaw reference.
func (c *Controller) awaitAuthority(abort *AbortSignal) (nav.PositionNED, bool) {
	hold, err := c.vehicle.Position()
	if err != nil {
		// No fix yet: hold the NED origin until telemetry catches up.
		hold = nav.PositionNED{}
	}
	sp := drone.Setpoint{Position: hold}

	ticker := time.NewTicker(c.cfg.StreamPeriod)
	defer ticker.Stop()

	var lastNotice time.Time
	for {
		select {
		case <-abort.Done():
			return hold, false
		case <-ticker.C:
			if err := c.vehicle.SendSetpoint(sp); err != nil {
				c.logger.Debug("hold setpoint send failed", slog.Any("error", err))
			}

			mode, err := c.vehicle.Mode()
			if err == nil && mode.Offboard() {
				c.logger.Info("offboard has taken control")
				return hold, true
			}
			if time.Since(lastNotice) >= time.Second {
				c.logger.Info("waiting for offboard control...")
				lastNotice = time.Now()
			}
		}
	}
}

// awaitArrival polls the position until the vehicle is within threshold of
// target. Transient read failures are retried; a run of them longer than
// the configured limit escalates to an authority-lost abort, on the theory
// that stale telemetry is as dangerous as lost authority. Returns false if
// the abort signal fired first.
func (c *Controller) awaitArrival(abort *AbortSignal, target nav.PositionNED, threshold float64) bool {
	ticker := time.NewTicker(c.cfg.ArrivalPollInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-abort.Done():
			return false
		case <-ticker.C:
			pos, err := c.vehicle.Position()
			if err != nil {
				failures++
				if failures >= c.cfg.TelemetryFailureLimit {
					c.logger.Error(fmt.Sprintf("%d consecutive telemetry failures, treating as lost authority", failures))
					abort.Fire(AbortAuthorityLost)
					return false
				}
				continue
			}
			failures = 0

			if Arrived(target, pos, threshold) {
				c.logger.Info(fmt.Sprintf("reached waypoint, final distance %.2fm", pos.Distance(target)))
				return true
			}
		}
	}
}

// returnHomeAndLand streams the vehicle back over the launch point and
// lands it.
func (c *Controller) returnHomeAndLand(streamer *streamer, abort *AbortSignal) {
	home := nav.PositionNED{Down: c.cfg.HomeDown}
	c.logger.Info("returning home")
	streamer.setLeg(home, 0)

	if !c.awaitArrival(abort, home, c.cfg.HomeThreshold) {
		return
	}

	c.logger.Info("landing")
	if err := c.vehicle.Land(); err != nil {
		c.logger.Error("land command failed", slog.Any("error", err))
	}
}

func (c *Controller) finishAborted(abort *AbortSignal, visited int, interrupted *nav.Waypoint) *Result {
	reason := abort.Reason()

	c.mu.Lock()
	c.state.Phase = PhaseAborted
	c.state.LastAbortReason = reason
	c.mu.Unlock()

	detail := fmt.Sprintf("mission aborted: %s", reason)
	if interrupted != nil {
		detail = fmt.Sprintf("mission aborted (%s): flight interrupted at row %d, N=%g, E=%g, D=%g",
			reason, interrupted.Row,
			interrupted.Position.North, interrupted.Position.East, interrupted.Position.Down)
	}
	c.logger.Warn(detail)
	c.emit(Event{
		Time:     time.Now(),
		Phase:    PhaseAborted,
		Waypoint: interrupted,
		Progress: float64(visited) / float64(len(c.plan)),
		Detail:   detail,
	})

	return &Result{
		Phase:       PhaseAborted,
		AbortReason: reason,
		Interrupted: interrupted,
		Visited:     visited,
	}
}
