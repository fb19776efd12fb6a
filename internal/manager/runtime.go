package manager

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// healthPath is polled on the spawned server until it answers OK.
const healthPath = "/health"

// ensureRuntime returns a ready runtime for modelPath, spawning the
// external inference server if none is cached. An unhealthy cached
// runtime is stopped and respawned. Spawns for the same path are
// serialized so concurrent callers share one subprocess.
func (m *Manager) ensureRuntime(ctx context.Context, modelPath string) (*Runtime, error) {
	lock := m.spawnLock(modelPath)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrDependencyUnavailable("manager is shut down")
	}
	if rt := m.runtimes[modelPath]; rt != nil && rt.State == StateReady {
		base := rt.baseURL
		m.mu.Unlock()
		if m.isHealthy(base, time.Second) {
			m.touchRuntime(modelPath)
			return rt, nil
		}
		// Cached server stopped answering; replace it.
		m.log.Warn().Str("model_path", modelPath).Msg("cached runtime unhealthy, respawning")
		m.stopRuntime(modelPath)
		m.mu.Lock()
	}
	// Make room before spawning.
	for len(m.runtimes) >= m.cfg.MaxRuntimes {
		victim := m.oldestRuntimeLocked()
		if victim == "" {
			break
		}
		m.mu.Unlock()
		m.evictRuntime(victim)
		m.mu.Lock()
	}
	m.mu.Unlock()

	return m.spawnRuntime(ctx, modelPath)
}

// spawnRuntime starts the external server for modelPath and waits for
// readiness with a deadline and early-exit detection.
func (m *Manager) spawnRuntime(ctx context.Context, modelPath string) (*Runtime, error) {
	host := m.cfg.RuntimeHost
	var port int
	var err error
	if m.cfg.PortStart > 0 && m.cfg.PortEnd >= m.cfg.PortStart {
		port, err = pickPortInRange(host, m.cfg.PortStart, m.cfg.PortEnd)
	} else {
		port, err = pickFreePort(host)
	}
	if err != nil {
		return nil, err
	}
	baseURL := fmt.Sprintf("http://%s:%d", host, port)

	args := []string{
		"--model", modelPath,
		"--host", host,
		"--port", strconv.Itoa(port),
	}
	cmd := exec.Command(m.cfg.ServerBin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, ErrDependencyUnavailable(fmt.Sprintf("inference server %q not found: install mlx-lm", m.cfg.ServerBin))
		}
		return nil, fmt.Errorf("start inference server: %w", err)
	}

	rt := &Runtime{
		ModelPath: modelPath,
		State:     StateSpawning,
		LastUsed:  time.Now(),
		Port:      port,
		PID:       cmd.Process.Pid,
		baseURL:   baseURL,
		cmd:       cmd,
		stderr:    &stderr,
		waitCh:    make(chan error, 1),
		genCh:     make(chan struct{}, 1),
		queueCh:   make(chan struct{}, m.cfg.MaxQueueDepth),
	}
	go func() { rt.waitCh <- cmd.Wait() }()

	m.mu.Lock()
	m.runtimes[modelPath] = rt
	m.mu.Unlock()

	m.log.Info().Str("model_path", modelPath).Int("pid", rt.PID).Int("port", port).Msg("runtime spawned")
	m.publisher.Publish(Event{Name: "spawn_start", Model: modelPath, Fields: map[string]any{
		"pid": rt.PID, "host": host, "port": port,
	}})

	deadline := time.Now().Add(m.cfg.SpawnTimeout)
	for {
		if time.Now().After(deadline) {
			m.removeRuntime(modelPath)
			_ = cmd.Process.Kill()
			runtimeSpawnsTotal.WithLabelValues("timeout").Inc()
			m.publisher.Publish(Event{Name: "spawn_timeout", Model: modelPath, Fields: map[string]any{"pid": rt.PID}})
			return nil, fmt.Errorf("inference server not ready in time: %s", baseURL)
		}
		select {
		case <-ctx.Done():
			m.removeRuntime(modelPath)
			_ = cmd.Process.Kill()
			return nil, ctx.Err()
		case werr := <-rt.waitCh:
			m.removeRuntime(modelPath)
			runtimeSpawnsTotal.WithLabelValues("exit_early").Inc()
			tail := stderr.String()
			if len(tail) > stderrTailBytes {
				tail = tail[len(tail)-stderrTailBytes:]
			}
			m.publisher.Publish(Event{Name: "spawn_exit", Model: modelPath, Fields: map[string]any{"pid": rt.PID}})
			if werr != nil {
				return nil, fmt.Errorf("inference server exited early: %v: %s", werr, strings.TrimSpace(tail))
			}
			return nil, fmt.Errorf("inference server exited before ready: %s", strings.TrimSpace(tail))
		default:
		}
		if m.isHealthy(baseURL, time.Second) {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	m.mu.Lock()
	rt.State = StateReady
	rt.LastUsed = time.Now()
	m.mu.Unlock()
	runtimeSpawnsTotal.WithLabelValues("ready").Inc()
	m.publisher.Publish(Event{Name: "spawn_ready", Model: modelPath, Fields: map[string]any{
		"pid": rt.PID, "url": baseURL,
	}})
	return rt, nil
}

// isHealthy checks whether the server at baseURL answers its health endpoint.
func (m *Manager) isHealthy(baseURL string, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+healthPath, nil)
	if err != nil {
		return false
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// stopRuntime terminates the runtime for modelPath: SIGTERM, a short
// grace period, then SIGKILL.
func (m *Manager) stopRuntime(modelPath string) {
	m.mu.Lock()
	rt := m.runtimes[modelPath]
	delete(m.runtimes, modelPath)
	m.mu.Unlock()
	if rt == nil || rt.cmd == nil || rt.cmd.Process == nil {
		return
	}
	_ = rt.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-rt.waitCh:
	case <-time.After(2 * time.Second):
		_ = rt.cmd.Process.Kill()
		<-rt.waitCh
	}
	m.log.Info().Str("model_path", modelPath).Int("pid", rt.PID).Msg("runtime stopped")
	m.publisher.Publish(Event{Name: "spawn_stop", Model: modelPath, Fields: map[string]any{"pid": rt.PID}})
}

// touchRuntime updates LastUsed for the cached runtime.
func (m *Manager) touchRuntime(modelPath string) {
	m.mu.Lock()
	if rt := m.runtimes[modelPath]; rt != nil {
		rt.LastUsed = time.Now()
	}
	m.mu.Unlock()
}

// removeRuntime drops a runtime from the cache without signaling it.
func (m *Manager) removeRuntime(modelPath string) {
	m.mu.Lock()
	delete(m.runtimes, modelPath)
	m.mu.Unlock()
}

func pickFreePort(host string) (int, error) {
	l, err := net.Listen("tcp", host+":0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	addr := l.Addr().String()
	lastColon := strings.LastIndex(addr, ":")
	if lastColon < 0 {
		return 0, fmt.Errorf("unexpected addr: %s", addr)
	}
	p, err := strconv.Atoi(addr[lastColon+1:])
	if err != nil {
		return 0, err
	}
	return p, nil
}

func pickPortInRange(host string, start, end int) (int, error) {
	for p := start; p <= end; p++ {
		l, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, p))
		if err != nil {
			continue
		}
		_ = l.Close()
		return p, nil
	}
	return 0, fmt.Errorf("no free port in range %d-%d", start, end)
}
