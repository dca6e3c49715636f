package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// writeFile replaces filename with data so that readers never observe a partial file. Watchers
// see a single create event for the final name.
func writeFile(filename string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(filename)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			f.Close()
			_ = os.Remove(f.Name())
		}
	}()

	if _, err = f.Write(data); err != nil {
		return err
	}
	if runtime.GOOS != "windows" {
		if err = f.Chmod(perm); err != nil {
			return err
		}
	}
	if err = f.Sync(); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	// rename does not replace an existing file on windows
	if runtime.GOOS == "windows" {
		_ = os.Remove(filename)
	}
	return os.Rename(f.Name(), filename)
}

func readFile(filename string) ([]byte, error) {
	return os.ReadFile(filename)
}

// Save writes cfg to path in the format matching its extension.
func Save(path string, cfg *Config) error {
	k, err := newWithDefaults()
	if err != nil {
		return err
	}
	for key, value := range cfg.values() {
		if err := k.Set(key, value); err != nil {
			return err
		}
	}
	out, err := k.Marshal(ParserFor(path))
	if err != nil {
		return err
	}
	return writeFile(path, out, 0644)
}

func (c *Config) values() map[string]any {
	return map[string]any{
		LogLevelKey:      c.LogLevel,
		LogTagKey:        c.LogTag,
		LogFileKey:       c.LogFile,
		LogMaxSizeKey:    c.LogMaxSizeMB,
		LogMaxBackupsKey: c.LogMaxBackups,
		SignalLevelsKey:  c.SignalLevels,
		WorkersKey:       c.Workers,
		SentryDSNKey:     c.SentryDSN,

		ProbeEnabledKey:         c.Probe.Enabled,
		ProbeStrategyKey:        c.Probe.Strategy,
		ProbeHostKey:            c.Probe.Host,
		ProbePortKey:            c.Probe.Port,
		ProbeURLKey:             c.Probe.URL,
		ProbeExpectedStatusKey:  c.Probe.ExpectedStatus,
		ProbeInitialIntervalKey: c.Probe.InitialInterval.String(),
		ProbeIntervalKey:        c.Probe.Interval.String(),
		ProbeTimeoutKey:         c.Probe.Timeout.String(),
		ProbeRetriesKey:         c.Probe.Retries,

		TelemetryEndpointKey:   c.Telemetry.Endpoint,
		TelemetryInsecureKey:   c.Telemetry.Insecure,
		TelemetryIntervalKey:   c.Telemetry.Interval.String(),
		TelemetryTracesKey:     c.Telemetry.TracesEnabled,
		TelemetryMetricsKey:    c.Telemetry.MetricsEnabled,
		TelemetrySampleRateKey: c.Telemetry.SampleRate,
	}
}
