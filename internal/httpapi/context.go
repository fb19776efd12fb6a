package httpapi

import (
	"context"
)

// serverBaseCtx is canceled when the daemon shuts down, so in-flight
// conversions and generations stop even if their client hangs on.
var serverBaseCtx = context.Background()

// SetBaseContext installs the daemon-lifetime context consulted by
// handlers. A nil ctx restores Background.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// joinContexts derives a context canceled as soon as either the daemon
// context or the request context is done. Callers must invoke cancel to
// reclaim the watcher goroutine.
func joinContexts(daemon, request context.Context) (context.Context, context.CancelFunc) {
	joined, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-daemon.Done():
		case <-request.Done():
		case <-joined.Done():
		}
		cancel()
	}()
	return joined, cancel
}
