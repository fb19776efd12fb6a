package registry

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// debounce window for filesystem events; conversions touch many files.
const watchDebounce = 500 * time.Millisecond

// Watch refreshes the registry whenever the models directory changes.
// It blocks until ctx is canceled. A missing directory is retried on a
// slow tick so a first conversion still triggers a refresh.
func (r *Registry) Watch(ctx context.Context, log zerolog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	watching := false
	addWatch := func() {
		if watching {
			return
		}
		if err := w.Add(r.dir); err == nil {
			watching = true
			log.Debug().Str("dir", r.dir).Msg("watching models dir")
		}
	}
	addWatch()

	retry := time.NewTicker(5 * time.Second)
	defer retry.Stop()

	var pending *time.Timer
	var pendingC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-retry.C:
			addWatch()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) == 0 {
				continue
			}
			if pending == nil {
				pending = time.NewTimer(watchDebounce)
				pendingC = pending.C
			} else {
				pending.Reset(watchDebounce)
			}
		case <-pendingC:
			pending = nil
			pendingC = nil
			if err := r.Refresh(); err != nil {
				log.Warn().Err(err).Msg("registry refresh failed")
				continue
			}
			log.Debug().Int("artifacts", len(r.Artifacts())).Msg("registry refreshed")
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("models dir watcher error")
		}
	}
}
