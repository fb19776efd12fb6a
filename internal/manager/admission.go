package manager

import (
	"context"
	"time"
)

// beginGeneration reserves a queue slot and then the single in-flight
// slot on rt. Returns a release func to be deferred.
func (m *Manager) beginGeneration(ctx context.Context, rt *Runtime) (func(), error) {
	// Try to reserve a queue slot with timeout
	select {
	case rt.queueCh <- struct{}{}:
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-time.After(m.cfg.MaxWait):
		return func() {}, tooBusyError{what: rt.ModelPath}
	}

	// Wait to acquire the single in-flight slot
	acquired := false
	defer func() {
		if !acquired {
			<-rt.queueCh
		}
	}()
	select {
	case rt.genCh <- struct{}{}:
		acquired = true
		m.touchRuntime(rt.ModelPath)
		return func() { <-rt.genCh; <-rt.queueCh }, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-time.After(m.cfg.MaxWait):
		return func() {}, tooBusyError{what: rt.ModelPath}
	}
}
