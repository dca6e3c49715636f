package config

import (
	"fmt"
	"log/slog"

	"github.com/getlantern/netwatch/internal"
)

// Watcher reloads the config file whenever it changes on disk.
type Watcher struct {
	fw *internal.FileWatcher
}

// Watch starts watching path. onChange receives every configuration that loads and validates;
// a file that fails to load is logged and skipped, leaving the previous configuration in effect.
func Watch(path string, logger *slog.Logger, onChange func(*Config)) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fw := internal.NewFileWatcher(path, 0, logger, func(path string) {
		cfg, err := Load(path)
		if err != nil {
			logger.Error("Failed to reload config", "path", path, "error", err)
			return
		}
		logger.Info("Reloaded config", "path", path)
		onChange(cfg)
	})
	if err := fw.Start(); err != nil {
		return nil, fmt.Errorf("starting config watcher: %w", err)
	}
	return &Watcher{fw: fw}, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fw.Close()
}
