package manager

import (
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mlxd/pkg/types"
)

type Manager struct {
	cfg       ManagerConfig
	log       zerolog.Logger
	publisher EventPublisher

	mu       sync.RWMutex
	runtimes map[string]*Runtime // key: artifact path
	closed   bool
	lastErr  string

	// One ensureRuntime at a time per artifact path, so concurrent
	// generations against an uncached model spawn a single server.
	spawnMu sync.Mutex
	spawns  map[string]*sync.Mutex

	// Single conversion in flight at a time.
	convertMu     sync.Mutex
	convertActive bool

	conversions uint64
	generations uint64

	httpClient *http.Client
	startTime  time.Time
}

// ListArtifacts returns the registry's current artifact snapshot.
func (m *Manager) ListArtifacts() []types.Artifact {
	return m.cfg.Registry.Artifacts()
}

// Ready reports whether the manager accepts work.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.closed
}

// UnloadRuntimes stops every cached inference runtime, freeing memory
// held by the spawned servers.
func (m *Manager) UnloadRuntimes() int {
	m.mu.Lock()
	paths := make([]string, 0, len(m.runtimes))
	for p := range m.runtimes {
		paths = append(paths, p)
	}
	m.mu.Unlock()
	for _, p := range paths {
		m.stopRuntime(p)
	}
	return len(paths)
}

// Close stops all runtimes and marks the manager unavailable.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()
	m.UnloadRuntimes()
	return nil
}

// spawnLock returns the mutex serializing spawns for modelPath.
func (m *Manager) spawnLock(modelPath string) *sync.Mutex {
	m.spawnMu.Lock()
	defer m.spawnMu.Unlock()
	l := m.spawns[modelPath]
	if l == nil {
		l = &sync.Mutex{}
		m.spawns[modelPath] = l
	}
	return l
}

// setLastErr records the most recent failure for /status.
func (m *Manager) setLastErr(err error) {
	if err == nil {
		return
	}
	m.mu.Lock()
	m.lastErr = err.Error()
	m.mu.Unlock()
}
