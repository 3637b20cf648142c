package env

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// WatchDebounce is the delay between the last change event and the callback.
var WatchDebounce = 300 * time.Millisecond

// Watch blocks until ctx is done, calling onChange whenever one of files is
// written, created or renamed over. Parent directories are watched so that
// editors replacing the file are noticed too. Errors returned by onChange are
// logged and do not stop the watch.
func Watch(ctx context.Context, logger zerolog.Logger, files []string, onChange func(file string) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	targets := make(map[string]struct{}, len(files))
	dirs := make(map[string]struct{})
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", f, err)
		}
		targets[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	logger.Info().Int("files", len(targets)).Msg("Watching env files")

	var (
		timer *time.Timer
		fire  = make(chan string, 1)
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			name, _ := filepath.Abs(event.Name)
			if _, tracked := targets[name]; !tracked {
				continue
			}
			logger.Debug().Str("file", name).Str("op", event.Op.String()).Msg("Env file changed")

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(WatchDebounce, func() {
				select {
				case fire <- name:
				default:
				}
			})

		case file := <-fire:
			if err := onChange(file); err != nil {
				logger.Error().Err(err).Str("file", file).Msg("Env change handler failed")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error().Err(err).Msg("Watcher error")
		}
	}
}
