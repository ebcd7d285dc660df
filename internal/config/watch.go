package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/cjeanneret/CloseUpCam/internal/debug"
	"github.com/fsnotify/fsnotify"
)

// Watch reloads the config file whenever it is written and passes the new
// configuration to onChange. Invalid files are reported and skipped.
// It blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer w.Close()

	// Watch the directory: editors often replace the file instead of writing it.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}
	target := filepath.Clean(path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(path)
			if err != nil {
				debug.Error(fmt.Errorf("reload config: %w", err))
				continue
			}
			debug.Info("Config reloaded from %s", path)
			onChange(cfg)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			debug.Error(fmt.Errorf("config watcher: %w", err))
		}
	}
}
