package gi

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/Carmen-Shannon/oxy-lpv/common"
	"github.com/fsnotify/fsnotify"
)

// WatchConfig reloads the configuration file whenever it is written or recreated and
// sends each valid result on the returned channel. Invalid files are logged and skipped.
// The channel is closed when ctx is cancelled.
//
// The parent directory is watched rather than the file itself because most editors
// save by renaming a temporary file over the original.
//
// Parameters:
//   - ctx: cancels the watch
//   - path: the TOML file to watch
//
// Returns:
//   - <-chan Config: receives every successfully reloaded configuration
//   - error: if the watcher could not be created
func WatchConfig(ctx context.Context, path string) (<-chan Config, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("gi: failed to create config watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("gi: failed to resolve %s: %w", path, err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("gi: failed to watch %s: %w", filepath.Dir(abs), err)
	}

	out := make(chan Config, 1)
	go func() {
		defer close(out)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := LoadConfig(abs)
				if err != nil {
					common.Logger().Warn("gi config reload failed", "path", abs, "error", err)
					continue
				}
				common.Logger().Info("gi config reloaded", "path", abs)
				select {
				case out <- cfg:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				common.Logger().Warn("gi config watcher error", "error", err)
			}
		}
	}()
	return out, nil
}
