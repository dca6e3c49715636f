package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/v2"
)

// Environment variables read by netwatch.
const (
	EnvLogLevel     = "NETWATCH_LOG_LEVEL"
	EnvConfig       = "NETWATCH_CONFIG"
	EnvSentryDSN    = "NETWATCH_SENTRY_DSN"
	EnvOTelEndpoint = "NETWATCH_OTEL_ENDPOINT"
)

var envKeys = map[string]string{
	EnvLogLevel:     LogLevelKey,
	EnvSentryDSN:    SentryDSNKey,
	EnvOTelEndpoint: TelemetryEndpointKey,
}

func applyEnv(k *koanf.Koanf) error {
	for env, key := range envKeys {
		value, ok := os.LookupEnv(env)
		if !ok {
			continue
		}
		if err := k.Set(key, strings.TrimSpace(value)); err != nil {
			return fmt.Errorf("could not apply %s: %w", env, err)
		}
	}
	return nil
}
