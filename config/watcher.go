package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/upb/order-processing/utils"
	"go.uber.org/zap"
)

// ReloadFunc receives each successfully reloaded configuration
type ReloadFunc func(*Config) error

// Watcher reloads configuration when the env file changes
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *zap.Logger
}

// NewWatcher creates a watcher for the given env file
func NewWatcher(path string, logger *zap.Logger) *Watcher {
	return &Watcher{
		path:     filepath.Clean(path),
		debounce: 250 * time.Millisecond,
		logger:   logger,
	}
}

// Run watches until ctx is done. A file that fails to load or validate is
// logged and skipped; the previous configuration stays in effect.
func (w *Watcher) Run(ctx context.Context, onReload ReloadFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so editors that replace the file are still seen
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}
	w.logger.Info("watching config file", zap.String("path", w.path))

	// Coalesces bursts of events into one reload
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(w.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", zap.Error(err))

		case <-timer.C:
			w.reload(onReload)
		}
	}
}

func (w *Watcher) reload(onReload ReloadFunc) {
	cfg, err := Load(w.path)
	if err != nil {
		fields := []zap.Field{zap.String("path", w.path), zap.Error(err)}
		if utils.IsValidationError(err) {
			fields = append(fields, zap.Any("fields", utils.GetValidationFields(err)))
		}
		w.logger.Error("config reload rejected", fields...)
		return
	}
	if err := onReload(cfg); err != nil {
		w.logger.Error("config reload failed", zap.String("path", w.path), zap.Error(err))
		return
	}
	w.logger.Info("config reloaded", zap.String("path", w.path))
}
