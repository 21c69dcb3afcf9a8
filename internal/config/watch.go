package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads configuration when a config file changes.
type Watcher struct {
	overrides FlagOverrides
	logger    *slog.Logger
	watcher   *fsnotify.Watcher
	files     map[string]bool
}

// NewWatcher watches the global and local config files. Directories are
// watched rather than files so editors that replace the file on save are
// seen; directories that don't exist are skipped.
func NewWatcher(overrides FlagOverrides, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	w := &Watcher{
		overrides: overrides,
		logger:    logger,
		watcher:   fw,
		files:     make(map[string]bool),
	}
	for _, path := range []string{GlobalConfigPath(), LocalConfigPath()} {
		if path == "" {
			continue
		}
		dir := filepath.Dir(path)
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("config watcher: %w", err)
		}
		w.files[filepath.Clean(path)] = true
	}
	return w, nil
}

// Run calls fn with the reloaded configuration after every change until ctx
// is done. Invalid configurations are logged and skipped.
func (w *Watcher) Run(ctx context.Context, fn func(*Config)) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.files[filepath.Clean(ev.Name)] || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			cfg, err := Load(w.overrides)
			if err != nil {
				w.logger.Warn("config reload failed", "path", ev.Name, "error", err)
				continue
			}
			w.logger.Debug("config reloaded", "path", ev.Name)
			fn(cfg)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
