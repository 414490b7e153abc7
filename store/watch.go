package store

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"go.ntppool.org/common/logger"
)

const debounceInterval = 100 * time.Millisecond

// Watch calls fn whenever the file at path is written, created or renamed
// into place, until ctx is done. Bursts of events are debounced.
func Watch(ctx context.Context, path string, fn func(context.Context)) error {
	log := logger.FromContext(ctx).WithGroup("watch")

	dir, name := filepath.Dir(path), filepath.Base(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// watch the directory since replaceFile renames over the file
	if err := watcher.Add(dir); err != nil {
		return err
	}
	log.InfoContext(ctx, "watching for changes", "dir", dir, "file", name)

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		var debounceC <-chan time.Time
		if debounceTimer != nil {
			debounceC = debounceTimer.C
		}

		select {
		case <-ctx.Done():
			return nil

		case <-debounceC:
			debounceTimer = nil
			fn(ctx)

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			log.DebugContext(ctx, "file changed", "event", event.String())
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.NewTimer(debounceInterval)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WarnContext(ctx, "file watcher error", "err", err)
		}
	}
}
