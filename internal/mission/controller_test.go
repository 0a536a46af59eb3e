package mission

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rollpitchyall/printinflight/internal/drone"
	"github.com/rollpitchyall/printinflight/internal/drone/sim"
	"github.com/rollpitchyall/printinflight/internal/nav"
)

// fastConfig is mission tuning scaled down so a full mission runs in well
// under a second of wall time.
func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.StreamPeriod = 10 * time.Millisecond
	cfg.ArrivalPollInterval = 5 * time.Millisecond
	cfg.AuthorityPollInterval = 10 * time.Millisecond
	cfg.BatteryPollInterval = 10 * time.Millisecond
	cfg.TelemetryFailureLimit = 5
	cfg.ReturnHome = false
	return cfg
}

func testPlan() nav.Plan {
	return nav.Plan{
		{Index: 0, Row: 2, Position: nav.PositionNED{North: 1, Down: -2}},
		{Index: 1, Row: 3, Position: nav.PositionNED{North: 10, Down: -2}},
		{Index: 2, Row: 4, Position: nav.PositionNED{North: 10, East: 2, Down: -2}},
	}
}

// eventRecorder collects controller events for later assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) record(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *eventRecorder) arrivals() []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var order []int
	for _, ev := range r.events {
		if ev.Phase == PhaseActive && ev.Waypoint != nil {
			order = append(order, ev.Waypoint.Index)
		}
	}
	return order
}

func (r *eventRecorder) phases() []Phase {
	r.mu.Lock()
	defer r.mu.Unlock()

	var phases []Phase
	for _, ev := range r.events {
		if ev.Waypoint == nil {
			phases = append(phases, ev.Phase)
		}
	}
	return phases
}

func runMission(t *testing.T, vehicle *sim.Vehicle, plan nav.Plan, cfg Config, rec *eventRecorder) *Result {
	t.Helper()

	opts := []func(*Controller){WithLogger(testLogger())}
	if rec != nil {
		opts = append(opts, WithEventFunc(rec.record))
	}
	c, err := New(vehicle, plan, cfg, opts...)
	if err != nil {
		t.Fatalf("creating controller: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := c.Run(ctx)
	if err != nil {
		t.Fatalf("running mission: %v", err)
	}
	return result
}

func TestMissionCompletesInOrder(t *testing.T) {
	vehicle := sim.New(sim.Config{Speed: 50, Tick: 2 * time.Millisecond, Mode: drone.ModeOffboard})
	vehicle.Start()
	defer vehicle.Stop()

	rec := &eventRecorder{}
	result := runMission(t, vehicle, testPlan(), fastConfig(), rec)

	if result.Phase != PhaseCompleted {
		t.Fatalf("expected PhaseCompleted, got %v", result.Phase)
	}
	if result.Visited != 3 {
		t.Errorf("expected 3 waypoints visited, got %d", result.Visited)
	}
	if result.Interrupted != nil {
		t.Errorf("completed mission should have no interruption point")
	}

	order := rec.arrivals()
	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Errorf("expected arrival order [0 1 2], got %v", order)
	}

	phases := rec.phases()
	want := []Phase{PhaseAwaitingAuthority, PhaseActive, PhaseCompleted}
	if len(phases) != len(want) {
		t.Fatalf("expected phases %v, got %v", want, phases)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Errorf("phase %d: expected %v, got %v", i, want[i], phases[i])
		}
	}
}

func TestMissionStreamsHoldWhileAwaitingAuthority(t *testing.T) {
	vehicle := sim.New(sim.Config{Speed: 50, Tick: 2 * time.Millisecond})
	vehicle.Start()
	defer vehicle.Stop()

	// Grant authority only after the hold stream has demonstrably started.
	go func() {
		for vehicle.SetpointCount() < 3 {
			time.Sleep(5 * time.Millisecond)
		}
		vehicle.SetMode(drone.ModeOffboard)
	}()

	result := runMission(t, vehicle, testPlan(), fastConfig(), nil)
	if result.Phase != PhaseCompleted {
		t.Fatalf("expected PhaseCompleted, got %v", result.Phase)
	}
}

func TestMissionAbortsOnAuthorityLoss(t *testing.T) {
	vehicle := sim.New(sim.Config{Speed: 20, Tick: 2 * time.Millisecond, Mode: drone.ModeOffboard})
	vehicle.Start()
	defer vehicle.Stop()

	rec := &eventRecorder{}
	flip := func(ev Event) {
		rec.record(ev)
		// Take back manual control while flying the long leg to waypoint 1.
		if ev.Phase == PhaseActive && ev.Waypoint != nil && ev.Waypoint.Index == 0 {
			vehicle.SetMode("POSCTL")
		}
	}

	c, err := New(vehicle, testPlan(), fastConfig(), WithLogger(testLogger()), WithEventFunc(flip))
	if err != nil {
		t.Fatalf("creating controller: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	result, err := c.Run(ctx)
	if err != nil {
		t.Fatalf("running mission: %v", err)
	}

	if result.Phase != PhaseAborted {
		t.Fatalf("expected PhaseAborted, got %v", result.Phase)
	}
	if result.AbortReason != AbortAuthorityLost {
		t.Errorf("expected AbortAuthorityLost, got %v", result.AbortReason)
	}
	if result.Interrupted == nil {
		t.Fatal("expected an interruption point")
	}
	if result.Interrupted.Index != 1 {
		t.Errorf("expected interruption at waypoint 1, got %d", result.Interrupted.Index)
	}
	if result.Interrupted.Row != 3 {
		t.Errorf("expected interruption row 3, got %d", result.Interrupted.Row)
	}
	if result.Visited != 1 {
		t.Errorf("expected 1 waypoint visited, got %d", result.Visited)
	}

	// Abort is terminal: no further setpoints, and a return to offboard
	// mode must not revive the mission.
	count := vehicle.SetpointCount()
	vehicle.SetMode(drone.ModeOffboard)
	time.Sleep(100 * time.Millisecond)

	if got := vehicle.SetpointCount(); got != count {
		t.Errorf("setpoints sent after abort: %d -> %d", count, got)
	}
	if got := c.State().Phase; got != PhaseAborted {
		t.Errorf("mission state left PhaseAborted: %v", got)
	}
}

func TestMissionAbortsOnCriticalBattery(t *testing.T) {
	vehicle := sim.New(sim.Config{Speed: 20, Tick: 2 * time.Millisecond, Mode: drone.ModeOffboard})
	vehicle.Start()
	defer vehicle.Stop()

	rec := &eventRecorder{}
	drain := func(ev Event) {
		rec.record(ev)
		if ev.Phase == PhaseActive && ev.Waypoint != nil && ev.Waypoint.Index == 0 {
			vehicle.SetBattery(0.05)
		}
	}

	c, err := New(vehicle, testPlan(), fastConfig(), WithLogger(testLogger()), WithEventFunc(drain))
	if err != nil {
		t.Fatalf("creating controller: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	result, err := c.Run(ctx)
	if err != nil {
		t.Fatalf("running mission: %v", err)
	}

	if result.Phase != PhaseAborted || result.AbortReason != AbortBatteryCritical {
		t.Fatalf("expected battery-critical abort, got %v/%v", result.Phase, result.AbortReason)
	}
	if got := vehicle.RTLCount(); got != 1 {
		t.Errorf("expected exactly one return-to-launch, got %d", got)
	}

	count := vehicle.SetpointCount()
	time.Sleep(100 * time.Millisecond)
	if got := vehicle.SetpointCount(); got != count {
		t.Errorf("position setpoints followed the RTL: %d -> %d", count, got)
	}
}

func TestMissionAbortsOnStaleTelemetry(t *testing.T) {
	vehicle := sim.New(sim.Config{Speed: 20, Tick: 2 * time.Millisecond, Mode: drone.ModeOffboard})
	vehicle.Start()
	defer vehicle.Stop()

	stall := func(ev Event) {
		if ev.Phase == PhaseActive && ev.Waypoint != nil && ev.Waypoint.Index == 0 {
			vehicle.FailPositionReads(errors.New("no position estimate"))
		}
	}

	c, err := New(vehicle, testPlan(), fastConfig(), WithLogger(testLogger()), WithEventFunc(stall))
	if err != nil {
		t.Fatalf("creating controller: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	result, err := c.Run(ctx)
	if err != nil {
		t.Fatalf("running mission: %v", err)
	}

	if result.Phase != PhaseAborted || result.AbortReason != AbortAuthorityLost {
		t.Fatalf("expected stale telemetry to abort as lost authority, got %v/%v", result.Phase, result.AbortReason)
	}
}

func TestMissionUserCancellation(t *testing.T) {
	vehicle := sim.New(sim.Config{Speed: 2, Tick: 2 * time.Millisecond, Mode: drone.ModeOffboard})
	vehicle.Start()
	defer vehicle.Stop()

	c, err := New(vehicle, testPlan(), fastConfig(), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("creating controller: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	result, err := c.Run(ctx)
	if err != nil {
		t.Fatalf("running mission: %v", err)
	}
	if result.Phase != PhaseAborted || result.AbortReason != AbortUserCancelled {
		t.Fatalf("expected user-cancelled abort, got %v/%v", result.Phase, result.AbortReason)
	}
}

func TestMissionReturnsHomeAndLands(t *testing.T) {
	vehicle := sim.New(sim.Config{Speed: 50, Tick: 2 * time.Millisecond, Mode: drone.ModeOffboard})
	vehicle.Start()
	defer vehicle.Stop()

	cfg := fastConfig()
	cfg.ReturnHome = true

	plan := nav.Plan{{Index: 0, Row: 2, Position: nav.PositionNED{North: 2, Down: -2}}}
	result := runMission(t, vehicle, plan, cfg, nil)

	if result.Phase != PhaseCompleted {
		t.Fatalf("expected PhaseCompleted, got %v", result.Phase)
	}
	if got := vehicle.LandCount(); got != 1 {
		t.Errorf("expected one land directive, got %d", got)
	}

	pos, err := vehicle.Position()
	if err != nil {
		t.Fatalf("reading position: %v", err)
	}
	home := nav.PositionNED{Down: cfg.HomeDown}
	if pos.Distance(home) > cfg.HomeThreshold {
		t.Errorf("vehicle finished %0.2fm from home", pos.Distance(home))
	}
}

func TestControllerIsSingleUse(t *testing.T) {
	vehicle := sim.New(sim.Config{Speed: 50, Tick: 2 * time.Millisecond, Mode: drone.ModeOffboard})
	vehicle.Start()
	defer vehicle.Stop()

	c, err := New(vehicle, testPlan(), fastConfig(), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("creating controller: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := c.Run(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := c.Run(ctx); err == nil {
		t.Fatal("expected second run to be rejected")
	}
}

func TestNewRejectsEmptyPlan(t *testing.T) {
	vehicle := sim.New(sim.Config{})
	if _, err := New(vehicle, nil, DefaultConfig()); err == nil {
		t.Fatal("expected error for empty plan")
	}
}
