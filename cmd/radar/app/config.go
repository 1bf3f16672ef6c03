package app

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wifisense/csi-radar/internal/doppler"
	"github.com/wifisense/csi-radar/internal/framing"
	"github.com/wifisense/csi-radar/internal/ingest"
	"github.com/wifisense/csi-radar/internal/telemetry"
)

// Config represents the main application configuration
type Config struct {
	Settings     Settings       `yaml:"settings"`
	Ports        []PortConfig   `yaml:"ports"`
	Master       string         `yaml:"master"`
	Store        StoreConfig    `yaml:"store"`
	Decoder      DecoderConfig  `yaml:"decoder"`
	Analysis     AnalysisConfig `yaml:"analysis"`
	AllowDevices []string       `yaml:"allowDevices"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
	Listen   string `yaml:"listen"` // optional HTTP status API address
}

// PortConfig represents a single serial endpoint configuration
type PortConfig struct {
	Name     string `yaml:"name"` // source identifier, identity fallback for anonymous records
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baudRate"`
	Enabled  bool   `yaml:"enabled"`
}

// StoreConfig represents telemetry store settings
type StoreConfig struct {
	CSICapacity      int   `yaml:"csiCapacity"`
	SyncHistorySize  int   `yaml:"syncHistorySize"`
	DriftThresholdUs int64 `yaml:"driftThresholdUs"`
}

// DecoderConfig represents frame decoder settings
type DecoderConfig struct {
	MaxBufferLen int `yaml:"maxBufferLen"`
}

// AnalysisConfig represents the motion analysis settings
type AnalysisConfig struct {
	IntervalSeconds float64        `yaml:"interval"` // tick period in seconds
	Devices         []RosterDevice `yaml:"devices"`
}

// RosterDevice names one device the analyzer scores, with its physical
// placement for downstream consumers.
type RosterDevice struct {
	ID string  `yaml:"id"`
	X  float64 `yaml:"x"`
	Y  float64 `yaml:"y"`
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	var config Config
	if err = yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	config.applyDefaults()
	if err = config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Settings.LogLevel == "" {
		c.Settings.LogLevel = "info"
	}
	if c.Store.CSICapacity == 0 {
		c.Store.CSICapacity = telemetry.DefaultCSICapacity
	}
	if c.Store.SyncHistorySize == 0 {
		c.Store.SyncHistorySize = telemetry.DefaultSyncHistorySize
	}
	if c.Store.DriftThresholdUs == 0 {
		c.Store.DriftThresholdUs = telemetry.DefaultDriftThreshold
	}
	if c.Decoder.MaxBufferLen == 0 {
		c.Decoder.MaxBufferLen = framing.DefaultMaxBufferLen
	}
	if c.Analysis.IntervalSeconds == 0 {
		c.Analysis.IntervalSeconds = doppler.DefaultInterval.Seconds()
	}
	for i := range c.Ports {
		if c.Ports[i].BaudRate == 0 {
			c.Ports[i].BaudRate = ingest.DefaultBaudRate
		}
	}
}

func (c *Config) validate() error {
	if c.Master == "" {
		return fmt.Errorf("no master device specified in configuration")
	}

	var enabled int
	for i, port := range c.Ports {
		if port.Port == "" {
			return fmt.Errorf("port %d: no serial port path", i)
		}
		if port.Name == "" {
			return fmt.Errorf("port %d: no source name", i)
		}
		if port.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("no ports enabled in configuration")
	}

	if c.Analysis.IntervalSeconds < 0 {
		return fmt.Errorf("analysis interval must be positive")
	}
	for i, dev := range c.Analysis.Devices {
		if dev.ID == "" {
			return fmt.Errorf("analysis device %d: no id", i)
		}
	}

	if _, err := parseLogLevel(c.Settings.LogLevel); err != nil {
		return err
	}
	return nil
}

// LogLevel returns the configured slog level.
func (c *Config) LogLevel() slog.Level {
	level, _ := parseLogLevel(c.Settings.LogLevel)
	return level
}

// AnalysisInterval returns the analysis tick period.
func (c *Config) AnalysisInterval() time.Duration {
	return time.Duration(c.Analysis.IntervalSeconds * float64(time.Second))
}

// Roster returns the analysis device ids in configuration order.
func (c *Config) Roster() []string {
	ids := make([]string, len(c.Analysis.Devices))
	for i, dev := range c.Analysis.Devices {
		ids[i] = dev.ID
	}
	return ids
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
