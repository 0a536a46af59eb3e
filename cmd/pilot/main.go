package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rollpitchyall/printinflight/cmd/pilot/app"
)

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))

	var configPath, planPath, listenAddr string
	flag.StringVar(&configPath, "c", "", "Path to the configuration file")
	flag.StringVar(&planPath, "p", "", "Path to the waypoint CSV (overrides configuration)")
	flag.StringVar(&listenAddr, "addr", "", "Telemetry listen address (overrides configuration)")
	flag.Parse()

	config := app.NewConfig()
	if configPath != "" {
		var err error
		config, err = app.LoadConfig(configPath)
		if err != nil {
			logger.Error(fmt.Sprintf("failed to load configuration file: %s", err.Error()), slog.String("path", configPath))
			os.Exit(1)
		}
	}

	if planPath != "" {
		config.Mission.PlanPath = planPath
	}
	if listenAddr != "" {
		config.Connection.ListenAddr = listenAddr
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(config.Settings.LogLevel)); err != nil {
		logger.Error(fmt.Sprintf("invalid log level '%s'", config.Settings.LogLevel))
		os.Exit(1)
	}
	logLevel.Set(level)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	code, err := app.Run(ctx, config, logger)
	if err != nil {
		logger.Error(err.Error())

		cancel()
		os.Exit(1)
	}
	os.Exit(code)
}
