// ABOUTME: Watches the credential file for changes made by other processes
// ABOUTME: A login or logout elsewhere reloads the store

package session

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 100 * time.Millisecond

// Watch reloads the store whenever the token file at path changes on disk,
// so a login or logout in another terminal propagates here. It blocks until
// ctx is cancelled.
func Watch(ctx context.Context, store *Store, path string, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory: atomic saves replace the file, which drops a file watch.
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	if err := w.Add(dir); err != nil {
		return err
	}
	target := filepath.Clean(path)

	logger.Debug("session watcher: started", slog.String("path", target))

	var reloadTimer *time.Timer
	var reloadCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			logger.Debug("session watcher: stopped")
			return nil

		case <-reloadCh:
			reloadCh = nil
			if err := store.Reload(); err != nil {
				logger.Warn("session watcher: reload failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if reloadTimer == nil {
				reloadTimer = time.NewTimer(reloadDebounce)
			} else {
				reloadTimer.Reset(reloadDebounce)
			}
			reloadCh = reloadTimer.C

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("session watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
