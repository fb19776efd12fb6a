package manager

import "time"

// oldestRuntimeLocked returns the least recently used idle runtime's
// model path, or "" when every runtime has a generation in flight.
// Caller must hold m.mu.
func (m *Manager) oldestRuntimeLocked() string {
	var victim string
	var oldest time.Time
	for path, rt := range m.runtimes {
		if len(rt.genCh) > 0 {
			continue
		}
		if victim == "" || rt.LastUsed.Before(oldest) {
			victim = path
			oldest = rt.LastUsed
		}
	}
	return victim
}

// evictRuntime stops the runtime for modelPath to make room in the cache.
func (m *Manager) evictRuntime(modelPath string) {
	m.log.Info().Str("model_path", modelPath).Msg("evicting least recently used runtime")
	m.publisher.Publish(Event{Name: "runtime_evict", Model: modelPath})
	m.stopRuntime(modelPath)
}
