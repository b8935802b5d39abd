package internal

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	pkgconfig "github.com/daybook-labs/daybook/pkg/config"
)

// watchConfig watches the config file and calls onReload with the freshly
// parsed configuration after each change, until ctx is cancelled.
//
// The parent directory is watched rather than the file itself because most
// editors replace files via rename, which drops a file-level watch. Events
// are debounced so a save that produces several writes reloads once.
func watchConfig(ctx context.Context, path string, logger *slog.Logger, onReload func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		return err
	}

	logger.Info("config watcher: started", slog.String("path", path))

	var reloadTimer *time.Timer
	var reloadCh <-chan time.Time

	scheduleReload := func() {
		if reloadTimer == nil {
			reloadTimer = time.NewTimer(200 * time.Millisecond)
			reloadCh = reloadTimer.C
		} else {
			reloadTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			logger.Info("config watcher: stopped")
			return nil

		case <-reloadCh:
			cfg := NewDefaultConfig()
			if loadErr := pkgconfig.Load(path, cfg); loadErr != nil {
				logger.Warn("config watcher: reload failed", slog.String("error", loadErr.Error()))
				continue
			}
			logger.Info("config watcher: reloaded", slog.String("path", path))
			onReload(cfg)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				scheduleReload()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("config watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
