package app

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/rollpitchyall/printinflight/internal/drone"
	"github.com/rollpitchyall/printinflight/internal/flightlog"
)

// trackRecorder samples the vehicle on its own cadence and writes batched
// track points to the flight log. It runs beside the mission and never
// feeds back into it.
type trackRecorder struct {
	store     *flightlog.Store
	vehicle   drone.Vehicle
	missionID int64
	interval  time.Duration
	batchSize int
	logger    *slog.Logger

	buf  []flightlog.TrackPoint
	done chan struct{}
}

func newTrackRecorder(store *flightlog.Store, vehicle drone.Vehicle, missionID int64, interval time.Duration, batchSize int, logger *slog.Logger) *trackRecorder {
	return &trackRecorder{
		store:     store,
		vehicle:   vehicle,
		missionID: missionID,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

func (r *trackRecorder) run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.flush()
			return
		case <-ticker.C:
			r.sample()
		}
	}
}

// wait blocks until the recorder has flushed and exited.
func (r *trackRecorder) wait() {
	<-r.done
}

func (r *trackRecorder) sample() {
	pos, err := r.vehicle.Position()
	if err != nil {
		return // telemetry gap, nothing to record
	}

	point := flightlog.TrackPoint{
		MissionID: r.missionID,
		Timestamp: time.Now(),
		North:     pos.North,
		East:      pos.East,
		Down:      pos.Down,
	}
	if battery, err := r.vehicle.Battery(); err == nil {
		point.Battery = sql.NullFloat64{Float64: battery, Valid: true}
	}
	if mode, err := r.vehicle.Mode(); err == nil {
		point.FlightMode = sql.NullString{String: string(mode), Valid: true}
	}

	r.buf = append(r.buf, point)
	if len(r.buf) >= r.batchSize {
		r.flush()
	}
}

func (r *trackRecorder) flush() {
	if len(r.buf) == 0 {
		return
	}
	if err := r.store.BatchInsertTrack(r.buf); err != nil {
		r.logger.Error("storing track points", slog.Any("error", err))
	}
	r.buf = r.buf[:0]
}
