package config

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// WatchLogger is the subset of logging used by Watch.
type WatchLogger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Watch monitors path and calls onChange with the newly loaded Config each
// time the file is written or replaced. It blocks until ctx is cancelled.
//
// A reload that fails to parse or validate is logged and skipped; the
// previous configuration stays in effect.
func Watch(ctx context.Context, path string, log WatchLogger, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}

	log.Info("watching config for changes", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Editors often save via rename, which shows up as Create.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := Load(path)
			if err != nil {
				log.Error("config reload failed, keeping previous config", "path", path, "error", err)
				continue
			}

			log.Info("config reloaded", "path", path)
			onChange(cfg)

			// Re-add in case an atomic save replaced the inode.
			_ = watcher.Add(path) //nolint:errcheck // Best effort; next event retries

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("config watcher error", "error", err)
		}
	}
}
