package mission

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rollpitchyall/printinflight/internal/drone"
)

// watchAuthority polls the flight mode and fires the abort signal the first
// time the vehicle is observed outside offboard control after mission
// start. It never touches mission state; the controller reacts to the
// signal.
func watchAuthority(ctx context.Context, vehicle drone.Vehicle, abort *AbortSignal, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-abort.Done():
			return
		case <-ticker.C:
			mode, err := vehicle.Mode()
			if err != nil {
				continue // transient, retry next poll
			}
			if !mode.Offboard() {
				logger.Warn("offboard has lost control", slog.String("mode", string(mode)))
				abort.Fire(AbortAuthorityLost)
				return
			}
		}
	}
}

// watchBattery polls the battery level, warns when it runs low, and on
// reaching the critical level fires the abort signal and issues a single
// return-to-launch directive. The RTL is sent only after the signal has
// fired, so the streamer has already been told to stand down.
func watchBattery(ctx context.Context, vehicle drone.Vehicle, abort *AbortSignal, cfg Config, logger *slog.Logger) {
	ticker := time.NewTicker(cfg.BatteryPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-abort.Done():
			return
		case <-ticker.C:
			remaining, err := vehicle.Battery()
			if err != nil {
				continue
			}
			if remaining <= cfg.BatteryCriticalLevel {
				logger.Error(fmt.Sprintf("critical battery level (%.1f%%), initiating return to launch", remaining*100))
				abort.Fire(AbortBatteryCritical)
				if err := vehicle.ReturnToLaunch(); err != nil {
					logger.Error("return to launch failed", slog.Any("error", err))
				}
				return
			}
			if remaining < cfg.BatteryWarnLevel {
				logger.Warn(fmt.Sprintf("low battery (%.1f%%)", remaining*100))
			}
		}
	}
}
