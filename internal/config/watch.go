package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"askai/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay coalesces the burst of events editors emit on save
const reloadDelay = 200 * time.Millisecond

// Watch reloads the config file whenever it changes and hands every valid
// result to onChange. Invalid files are logged and ignored. Watch blocks
// until ctx is done.
func Watch(ctx context.Context, path string, logger *logging.Logger, onChange func(*Config)) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	// Watch the directory: editors often replace the file instead of writing it
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	logger = logger.WithContext("config_path", abs)
	logger.Debug("watching config file")

	timer := time.NewTimer(reloadDelay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			logger.WithContext("event_type", event.Op.String()).Debug("config file changed")
			timer.Reset(reloadDelay)

		case <-timer.C:
			cfg, err := Load(abs)
			if err != nil {
				logger.WithContext("error", err.Error()).Warn("ignoring invalid config change")
				continue
			}
			logger.Info("configuration reloaded")
			onChange(cfg)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.WithContext("error", err.Error()).Error("watcher error")
		}
	}
}
