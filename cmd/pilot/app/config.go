package app

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rollpitchyall/printinflight/internal/mission"
)

const (
	DriverSim Driver = "sim"
	DriverUDP Driver = "udp"
)

// Driver selects the vehicle adapter.
type Driver string

// Config is the main application configuration.
type Config struct {
	Settings   Settings         `yaml:"settings"`
	Connection ConnectionConfig `yaml:"connection"`
	Mission    MissionConfig    `yaml:"mission"`
	Storage    StorageConfig    `yaml:"storage"`
}

// Settings holds global application settings.
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// ConnectionConfig selects and tunes the vehicle adapter.
type ConnectionConfig struct {
	Driver      Driver    `yaml:"driver"`
	ListenAddr  string    `yaml:"listenAddr"`
	CommandAddr string    `yaml:"commandAddr"`
	Sim         SimConfig `yaml:"sim"`
}

// SimConfig tunes the built-in simulated vehicle.
type SimConfig struct {
	Speed          float64 `yaml:"speed"`
	Battery        float64 `yaml:"battery"`
	DrainPerSecond float64 `yaml:"drainPerSecond"`

	// AutoOffboardAfter grants offboard control automatically after this
	// many seconds, for unattended dry runs. Zero means wait for the
	// operator (the sim then needs an external mode flip, which tests do).
	AutoOffboardAfter float64 `yaml:"autoOffboardAfter"`
}

// MissionConfig holds the plan source and controller tuning. Intervals are
// seconds.
type MissionConfig struct {
	PlanPath string  `yaml:"planPath"`
	MaxLeg   float64 `yaml:"maxLeg"`

	StreamPeriod          float64 `yaml:"streamPeriod"`
	LookAheadFraction     float64 `yaml:"lookAheadFraction"`
	MaxStep               float64 `yaml:"maxStep"`
	ArrivalThreshold      float64 `yaml:"arrivalThreshold"`
	ArrivalPollInterval   float64 `yaml:"arrivalPollInterval"`
	AuthorityPollInterval float64 `yaml:"authorityPollInterval"`
	BatteryPollInterval   float64 `yaml:"batteryPollInterval"`
	BatteryWarnLevel      float64 `yaml:"batteryWarnLevel"`
	BatteryCriticalLevel  float64 `yaml:"batteryCriticalLevel"`
	TelemetryFailureLimit int     `yaml:"telemetryFailureLimit"`
	ReturnHome            *bool   `yaml:"returnHome"`
}

// StorageConfig holds flight log settings.
type StorageConfig struct {
	Enabled       bool    `yaml:"enabled"`
	DataDirectory string  `yaml:"dataDirectory"`
	TrackInterval float64 `yaml:"trackInterval"`
	MaxBatchSize  int     `yaml:"maxBatchSize"`
}

// NewConfig returns the stock configuration: simulated vehicle, default
// mission tuning, flight log enabled.
func NewConfig() *Config {
	return &Config{
		Settings: Settings{LogLevel: "info"},
		Connection: ConnectionConfig{
			Driver:      DriverSim,
			ListenAddr:  "0.0.0.0:14540",
			CommandAddr: "127.0.0.1:14541",
			Sim:         SimConfig{AutoOffboardAfter: 2},
		},
		Mission: MissionConfig{
			PlanPath: "coordinates.csv",
			MaxLeg:   100,
		},
		Storage: StorageConfig{
			Enabled:       true,
			DataDirectory: "data",
			TrackInterval: 0.2,
			MaxBatchSize:  100,
		},
	}
}

// LoadConfig reads a YAML configuration file over the stock defaults.
func LoadConfig(path string) (*Config, error) {
	config := NewConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if config.Connection.Driver != DriverSim && config.Connection.Driver != DriverUDP {
		return nil, fmt.Errorf("unknown connection driver '%s'", config.Connection.Driver)
	}
	if config.Mission.MaxLeg <= 0 {
		return nil, fmt.Errorf("mission.maxLeg must be positive")
	}
	if config.Storage.Enabled {
		if config.Storage.TrackInterval <= 0 {
			return nil, fmt.Errorf("storage.trackInterval must be positive")
		}
		if config.Storage.MaxBatchSize <= 0 {
			return nil, fmt.Errorf("storage.maxBatchSize must be positive")
		}
	}
	return config, nil
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// missionConfig maps the YAML tuning onto the controller's Config; zero
// values fall through to the controller defaults.
func (c *Config) missionConfig() mission.Config {
	m := c.Mission

	cfg := mission.Config{
		StreamPeriod:          seconds(m.StreamPeriod),
		LookAheadFrac:         m.LookAheadFraction,
		MaxStep:               m.MaxStep,
		ArrivalThreshold:      m.ArrivalThreshold,
		ArrivalPollInterval:   seconds(m.ArrivalPollInterval),
		AuthorityPollInterval: seconds(m.AuthorityPollInterval),
		BatteryPollInterval:   seconds(m.BatteryPollInterval),
		BatteryWarnLevel:      m.BatteryWarnLevel,
		BatteryCriticalLevel:  m.BatteryCriticalLevel,
		TelemetryFailureLimit: m.TelemetryFailureLimit,
		ReturnHome:            true,
	}
	if m.ReturnHome != nil {
		cfg.ReturnHome = *m.ReturnHome
	}
	return cfg
}
