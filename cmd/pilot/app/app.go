// Package app wires the pilot binary: plan loading, vehicle adapter
// selection, the flight log recorder and the mission controller.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rollpitchyall/printinflight/internal/drone"
	"github.com/rollpitchyall/printinflight/internal/drone/sim"
	"github.com/rollpitchyall/printinflight/internal/drone/udp"
	"github.com/rollpitchyall/printinflight/internal/flightlog"
	"github.com/rollpitchyall/printinflight/internal/mission"
	"github.com/rollpitchyall/printinflight/internal/nav"
)

// Exit codes. Authority loss and operator cancellation are intentional
// terminations, so they share the success code; safety aborts are
// distinguishable for wrapping scripts.
const (
	ExitOK          = 0
	ExitSafetyAbort = 2
)

// Run executes one mission attempt. A non-nil error means the mission never
// started (load, storage or connection failure); otherwise the returned
// code reflects how the mission ended.
func Run(ctx context.Context, config *Config, logger *slog.Logger) (int, error) {
	plan, err := nav.LoadPlanFile(config.Mission.PlanPath, config.Mission.MaxLeg)
	if err != nil {
		return 0, err
	}
	logger.Info(fmt.Sprintf("loaded %d waypoints, planned path %sm",
		len(plan), humanize.CommafWithDigits(plan.Length(), 1)),
		slog.String("plan", config.Mission.PlanPath))

	vehicle, cleanup, err := createVehicle(&config.Connection)
	if err != nil {
		return 0, fmt.Errorf("creating vehicle adapter: %w", err)
	}
	defer cleanup()

	var store *flightlog.Store
	var missionID int64
	if config.Storage.Enabled {
		store, missionID, err = createFlightLog(config)
		if err != nil {
			return 0, err
		}
		defer store.Close()

		if err = store.InsertWaypoints(missionID, plan); err != nil {
			return 0, fmt.Errorf("storing plan: %w", err)
		}
	}

	events := func(ev mission.Event) {
		logEvent(logger, plan, ev)
		if store != nil {
			recordEvent(store, missionID, ev, logger)
		}
	}

	controller, err := mission.New(vehicle, plan, config.missionConfig(),
		mission.WithLogger(logger), mission.WithEventFunc(events))
	if err != nil {
		return 0, err
	}

	var recorder *trackRecorder
	recCtx, recCancel := context.WithCancel(context.Background())
	defer recCancel()
	if store != nil {
		recorder = newTrackRecorder(store, vehicle, missionID,
			seconds(config.Storage.TrackInterval), config.Storage.MaxBatchSize, logger)
		go recorder.run(recCtx)
	}

	result, err := controller.Run(ctx)
	if recorder != nil {
		recCancel()
		recorder.wait()
	}
	if err != nil {
		return 0, err
	}

	return summarize(logger, result), nil
}

func createVehicle(cfg *ConnectionConfig) (drone.Vehicle, func(), error) {
	switch cfg.Driver {
	case DriverUDP:
		adapter, err := udp.New(udp.Config{
			ListenAddr:  cfg.ListenAddr,
			CommandAddr: cfg.CommandAddr,
		})
		if err != nil {
			return nil, nil, err
		}
		return adapter, func() { _ = adapter.Close() }, nil

	case DriverSim:
		vehicle := sim.New(sim.Config{
			Speed:          cfg.Sim.Speed,
			Battery:        cfg.Sim.Battery,
			DrainPerSecond: cfg.Sim.DrainPerSecond,
		})
		vehicle.Start()

		var timer *time.Timer
		if cfg.Sim.AutoOffboardAfter > 0 {
			timer = time.AfterFunc(seconds(cfg.Sim.AutoOffboardAfter), func() {
				vehicle.SetMode(drone.ModeOffboard)
			})
		}

		cleanup := func() {
			if timer != nil {
				timer.Stop()
			}
			vehicle.Stop()
		}
		return vehicle, cleanup, nil

	default:
		return nil, nil, fmt.Errorf("unknown connection driver '%s'", cfg.Driver)
	}
}

func createFlightLog(config *Config) (*flightlog.Store, int64, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, 0, fmt.Errorf("getting current working directory: %w", err)
	}

	dir := config.Storage.DataDirectory
	if dir == "" {
		dir = "data"
	}
	dbDir := filepath.Join(wd, dir)

	stat, err := os.Stat(dbDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, fmt.Errorf("flight log directory '%s' does not exist: %w", dbDir, err)
		}
		return nil, 0, err
	}
	if !stat.IsDir() {
		return nil, 0, fmt.Errorf("invalid flight log directory '%s'", dbDir)
	}

	dbPath := filepath.Join(dbDir, fmt.Sprintf("flight_%s.sqlite", time.Now().UTC().Format("20060102_150405")))
	store := flightlog.New(dbPath)

	missionID, err := store.CreateMission(config.Mission.PlanPath, config)
	if err != nil {
		_ = store.Close()
		return nil, 0, fmt.Errorf("creating flight log mission: %w", err)
	}
	return store, missionID, nil
}

func logEvent(logger *slog.Logger, plan nav.Plan, ev mission.Event) {
	switch {
	case ev.Phase == mission.PhaseActive && ev.Waypoint != nil:
		logger.Info(fmt.Sprintf("reached waypoint %d: N=%g, E=%g, D=%g (%.0f%% of %d waypoints)",
			ev.Waypoint.Index,
			ev.Waypoint.Position.North, ev.Waypoint.Position.East, ev.Waypoint.Position.Down,
			ev.Progress*100, len(plan)))
	default:
		logger.Info(ev.Detail, slog.String("phase", ev.Phase.String()))
	}
}

func recordEvent(store *flightlog.Store, missionID int64, ev mission.Event, logger *slog.Logger) {
	var idx *int
	if ev.Waypoint != nil {
		idx = &ev.Waypoint.Index
	}
	if err := store.RecordEvent(missionID, ev.Time, ev.Phase.String(), idx, ev.Detail); err != nil {
		logger.Error("recording event", slog.Any("error", err))
	}
}

func summarize(logger *slog.Logger, result *mission.Result) int {
	switch result.Phase {
	case mission.PhaseCompleted:
		logger.Info("mission completed successfully")
		return ExitOK

	case mission.PhaseAborted:
		switch result.AbortReason {
		case mission.AbortAuthorityLost, mission.AbortUserCancelled:
			// The operator, or a deliberate mode change, ended the mission.
			return ExitOK
		default:
			return ExitSafetyAbort
		}
	}
	return ExitOK
}
