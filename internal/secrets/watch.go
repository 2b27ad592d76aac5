package secrets

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// WatchAllowlist reloads the Redactor whenever the allowlist file at path is
// written, created or renamed into place. It blocks until ctx is done.
//
// The parent directory is watched rather than the file so that editors which
// replace the file atomically keep triggering reloads.
func (r *Redactor) WatchAllowlist(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			r.reloadFrom(ctx, path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn(ctx, "allowlist watcher error", zap.Error(err))
		}
	}
}

func (r *Redactor) reloadFrom(ctx context.Context, path string) {
	allowlist, err := LoadAllowlist(path)
	if err == nil {
		err = r.Reload(allowlist)
	}
	if err != nil {
		r.logger.Warn(ctx, "allowlist reload failed, keeping previous rules",
			zap.String("path", path), zap.Error(err))
		return
	}
	r.logger.Info(ctx, "allowlist reloaded",
		zap.String("path", path),
		zap.Int("regexes", len(allowlist.Regexes)),
		zap.Int("stopwords", len(allowlist.StopWords)))
}
