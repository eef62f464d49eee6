package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// WatchMonitors reloads path on every write and calls onChange with the new
// set. A file that fails to load is logged and the previous set stays in
// effect. Runs until ctx is cancelled.
func WatchMonitors(ctx context.Context, path string, log *zap.Logger, onChange func(*MonitorFile)) error {
	if log == nil {
		log = zap.NewNop()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory so atomic saves (rename over the file) are seen.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}
	target := filepath.Clean(path)
	log.Info("monitors_file_watching", zap.String("path", path))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			f, err := LoadMonitors(path)
			if err != nil {
				log.Error("monitors_file_reload_failed",
					zap.String("path", path),
					zap.String("category", "validation"),
					zap.Error(err),
				)
				continue
			}
			log.Info("monitors_file_reloaded", zap.String("path", path), zap.Int("monitors", len(f.Monitors)))
			onChange(f)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("monitors_file_watch_error", zap.Error(err))
		}
	}
}
