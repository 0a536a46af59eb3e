// Package app renders a recorded mission from the flight log as a top-down
// image: planned path, waypoints and the actual flown track.
package app

import (
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rollpitchyall/printinflight/internal/flightlog"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := flightlog.New(config.DBPath)
	defer store.Close()

	return renderMission(ctx, store, config, logger)
}

func renderMission(ctx context.Context, store *flightlog.Store, config *Config, logger *slog.Logger) error {
	mission, err := store.Mission(config.MissionID)
	if err != nil {
		return fmt.Errorf("reading mission %d: %w", config.MissionID, err)
	}

	plan, err := store.Waypoints(config.MissionID)
	if err != nil {
		return fmt.Errorf("reading waypoints: %w", err)
	}
	if len(plan) == 0 {
		return fmt.Errorf("mission %d has no stored waypoints", config.MissionID)
	}

	track, err := store.Track(config.MissionID)
	if err != nil {
		return fmt.Errorf("reading track: %w", err)
	}
	if err = ctx.Err(); err != nil {
		return err
	}

	plot := &Plot{Mission: mission, Plan: plan, Track: track}

	logger.Info("loaded mission",
		slog.Group("mission",
			slog.Int64("id", mission.ID),
			slog.String("start", mission.StartTime.Local().Format(time.DateTime)),
			slog.String("plan", mission.PlanPath),
			slog.Int("waypoints", len(plan)),
			slog.Int("trackPoints", len(track)),
			slog.String("planned", humanize.CommafWithDigits(plan.Length(), 1)+"m"),
			slog.String("flown", humanize.CommafWithDigits(plot.FlownDistance(), 1)+"m"),
		))

	var ann *Annotator
	if !config.NoAnnotations {
		ann, err = NewAnnotator(config.FontFile)
		if err != nil {
			logger.Warn(fmt.Sprintf("annotations disabled: %s", err.Error()))
		} else {
			defer ann.Close()
		}
	}

	renderer := NewTrackRenderer(RenderConfig{Scale: config.Scale})

	logger.Info("rendering track plot",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.Float64("scale", config.Scale),
		))

	img, err := renderer.Render(plot, ann)
	if err != nil {
		return fmt.Errorf("rendering track plot: %w", err)
	}

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}
	defer out.Close()

	switch config.Format {
	case ImagePNG:
		err = png.Encode(out, img)
	case ImageJPEG:
		err = jpeg.Encode(out, img, &jpeg.Options{
			Quality: 98,
		})
	}
	return err
}
