package mission

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rollpitchyall/printinflight/internal/drone"
	"github.com/rollpitchyall/printinflight/internal/nav"
)

// streamer emits one forward-looking setpoint per tick toward the current
// leg's target. It is the only setpoint writer while the mission is active,
// and its cadence is independent of the arrival loop and the monitors: a
// slow monitor never delays a keep-alive send. It stops within one tick of
// the abort signal firing.
type streamer struct {
	vehicle drone.Vehicle
	logger  *slog.Logger
	period  time.Duration
	frac    float64
	maxStep float64

	mu     sync.Mutex
	target nav.PositionNED
	yawDeg float64
	active bool

	lastSent *drone.Setpoint // owned by the run goroutine
}

func newStreamer(vehicle drone.Vehicle, cfg Config, logger *slog.Logger) *streamer {
	return &streamer{
		vehicle: vehicle,
		logger:  logger,
		period:  cfg.StreamPeriod,
		frac:    cfg.LookAheadFrac,
		maxStep: cfg.MaxStep,
	}
}

// setLeg swaps the streamed target and leg yaw. The next tick picks it up.
func (s *streamer) setLeg(target nav.PositionNED, yawDeg float64) {
	s.mu.Lock()
	s.target = target
	s.yawDeg = yawDeg
	s.active = true
	s.mu.Unlock()
}

func (s *streamer) leg() (nav.PositionNED, float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target, s.yawDeg, s.active
}

// run ticks until the context is cancelled or the abort signal fires.
func (s *streamer) run(ctx context.Context, abort *AbortSignal) {
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-abort.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *streamer) tick() {
	target, yawDeg, active := s.leg()
	if !active {
		return
	}

	pos, err := s.vehicle.Position()
	if err != nil {
		// During a position read gap, resend the last commanded point: it
		// keeps the keep-alive satisfied without ever widening the step.
		// Nothing sent yet means nothing safe to hold, so skip the tick.
		if s.lastSent == nil {
			return
		}
		if err := s.vehicle.SendSetpoint(*s.lastSent); err != nil {
			s.logger.Warn("setpoint send failed, retrying next tick", slog.Any("error", err))
		}
		return
	}

	sp := drone.Setpoint{Position: nav.LookAhead(pos, target, s.frac, s.maxStep), YawDeg: yawDeg}
	if err := s.vehicle.SendSetpoint(sp); err != nil {
		s.logger.Warn("setpoint send failed, retrying next tick", slog.Any("error", err))
		return
	}
	s.lastSent = &sp
}
