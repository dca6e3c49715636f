package config

import (
	"os"
	"path/filepath"
)

const fileName = "netwatch.json"

// Path returns the config file to use: explicit if set, then $NETWATCH_CONFIG, then
// netwatch.json in the user config directory.
func Path(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p, ok := os.LookupEnv(EnvConfig); ok && p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "netwatch", fileName)
}
