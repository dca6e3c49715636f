// Package config loads netwatch configuration from a JSON or YAML file, falling back to
// defaults and letting environment variables override a few keys.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/getlantern/netwatch/internal"
)

// Keys for the settings that have defaults or environment overrides.
const (
	LogLevelKey      = "log_level"
	LogTagKey        = "log_tag"
	LogFileKey       = "log_file"
	LogMaxSizeKey    = "log_max_size_mb"
	LogMaxBackupsKey = "log_max_backups"
	SignalLevelsKey  = "signal_levels"
	WorkersKey       = "workers"
	SentryDSNKey     = "sentry_dsn"

	ProbeEnabledKey         = "probe.enabled"
	ProbeStrategyKey        = "probe.strategy"
	ProbeHostKey            = "probe.host"
	ProbePortKey            = "probe.port"
	ProbeURLKey             = "probe.url"
	ProbeExpectedStatusKey  = "probe.expected_status"
	ProbeInitialIntervalKey = "probe.initial_interval"
	ProbeIntervalKey        = "probe.interval"
	ProbeTimeoutKey         = "probe.timeout"
	ProbeRetriesKey         = "probe.retries"

	TelemetryEndpointKey   = "telemetry.endpoint"
	TelemetryInsecureKey   = "telemetry.insecure"
	TelemetryIntervalKey   = "telemetry.interval"
	TelemetryTracesKey     = "telemetry.traces_enabled"
	TelemetryMetricsKey    = "telemetry.metrics_enabled"
	TelemetrySampleRateKey = "telemetry.sample_rate"
)

// Probe strategies.
const (
	StrategyWalledGarden = "walled_garden"
	StrategySocket       = "socket"
)

// Config is the full netwatch configuration.
type Config struct {
	LogLevel      string `koanf:"log_level"`
	LogTag        string `koanf:"log_tag"`
	LogFile       string `koanf:"log_file"`
	LogMaxSizeMB  int    `koanf:"log_max_size_mb"`
	LogMaxBackups int    `koanf:"log_max_backups"`

	// SignalLevels is the number of buckets RSSI readings are sorted into.
	SignalLevels int `koanf:"signal_levels"`
	// Workers bounds the background pool that runs sources.
	Workers int `koanf:"workers"`

	SentryDSN string `koanf:"sentry_dsn"`

	Probe     Probe     `koanf:"probe"`
	Telemetry Telemetry `koanf:"telemetry"`
}

// Probe configures internet reachability checks.
type Probe struct {
	Enabled         bool          `koanf:"enabled"`
	Strategy        string        `koanf:"strategy"`
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	URL             string        `koanf:"url"`
	ExpectedStatus  int           `koanf:"expected_status"`
	InitialInterval time.Duration `koanf:"initial_interval"`
	Interval        time.Duration `koanf:"interval"`
	Timeout         time.Duration `koanf:"timeout"`
	Retries         int           `koanf:"retries"`
}

// Telemetry configures OpenTelemetry export. Nothing is exported without an endpoint.
type Telemetry struct {
	Endpoint       string        `koanf:"endpoint"`
	Insecure       bool          `koanf:"insecure"`
	Interval       time.Duration `koanf:"interval"`
	TracesEnabled  bool          `koanf:"traces_enabled"`
	MetricsEnabled bool          `koanf:"metrics_enabled"`
	SampleRate     float64       `koanf:"sample_rate"`
}

var defaults = map[string]any{
	LogLevelKey:      "info",
	LogTagKey:        "ReactiveNetwork",
	LogFileKey:       "",
	LogMaxSizeKey:    10,
	LogMaxBackupsKey: 3,
	SignalLevelsKey:  5,
	WorkersKey:       8,
	SentryDSNKey:     "",

	ProbeEnabledKey:         false,
	ProbeStrategyKey:        StrategyWalledGarden,
	ProbeHostKey:            "www.google.com",
	ProbePortKey:            80,
	ProbeURLKey:             "http://clients3.google.com/generate_204",
	ProbeExpectedStatusKey:  204,
	ProbeInitialIntervalKey: "0s",
	ProbeIntervalKey:        "2s",
	ProbeTimeoutKey:         "2s",
	ProbeRetriesKey:         0,

	TelemetryEndpointKey:   "",
	TelemetryInsecureKey:   false,
	TelemetryIntervalKey:   "1m",
	TelemetryTracesKey:     false,
	TelemetryMetricsKey:    true,
	TelemetrySampleRateKey: 1.0,
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	k, err := newWithDefaults()
	if err != nil {
		panic(err)
	}
	cfg, err := unmarshal(k)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the configuration at path. If the file does not exist it is created with the
// defaults. Environment overrides are applied last and never written back.
func Load(path string) (*Config, error) {
	k, err := newWithDefaults()
	if err != nil {
		return nil, err
	}
	parser := ParserFor(path)
	raw, err := readFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		out, err := k.Marshal(parser)
		if err != nil {
			return nil, fmt.Errorf("could not marshal default config: %w", err)
		}
		if err := writeFile(path, out, 0644); err != nil {
			return nil, fmt.Errorf("could not write default config: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("error loading config file: %w", err)
	default:
		if err := k.Load(rawbytes.Provider(raw), parser); err != nil {
			return nil, fmt.Errorf("error parsing config file %s: %w", path, err)
		}
	}
	if err := applyEnv(k); err != nil {
		return nil, err
	}
	cfg, err := unmarshal(k)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that values are usable.
func (c *Config) Validate() error {
	var errs []error
	if _, err := internal.ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.SignalLevels < 2 {
		errs = append(errs, fmt.Errorf("signal_levels must be at least 2, got %d", c.SignalLevels))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.Probe.Enabled {
		switch c.Probe.Strategy {
		case StrategyWalledGarden, StrategySocket:
		default:
			errs = append(errs, fmt.Errorf("unknown probe strategy %q", c.Probe.Strategy))
		}
		if c.Probe.Interval <= 0 {
			errs = append(errs, fmt.Errorf("probe interval must be positive, got %s", c.Probe.Interval))
		}
		if c.Probe.Port < 0 || c.Probe.Port > 65535 {
			errs = append(errs, fmt.Errorf("probe port out of range: %d", c.Probe.Port))
		}
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("telemetry sample_rate must be within [0, 1], got %v", c.Telemetry.SampleRate))
	}
	return errors.Join(errs...)
}

// ParserFor picks the parser matching the file extension. Anything that is not YAML is read as
// JSON.
func ParserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAMLParser()
	default:
		return JSONParser()
	}
}

func newWithDefaults() (*koanf.Koanf, error) {
	k := koanf.New(".")
	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("could not set default %s: %w", key, err)
		}
	}
	return k, nil
}

func unmarshal(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("could not decode config: %w", err)
	}
	return &cfg, nil
}
