//go:build unix

package manager

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// buildFakeServer compiles the stand-in inference server used by the
// spawn tests and returns its path.
func buildFakeServer(t *testing.T) string {
	t.Helper()
	bin := filepath.Join(t.TempDir(), "fake_mlx_server")
	cmd := exec.Command("go", "build", "-o", bin, "./testdata/fake_mlx_server.go")
	cmd.Dir = "."
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("build fake server: %v: %s", err, string(out))
	}
	return bin
}

func newRuntimeTestManager(t *testing.T, serverBin string, mutate func(*ManagerConfig)) (*Manager, *MemoryPublisher) {
	t.Helper()
	return newTestManager(t, func(cfg *ManagerConfig) {
		cfg.ServerBin = serverBin
		cfg.SpawnTimeout = 10 * time.Second
		if mutate != nil {
			mutate(cfg)
		}
	})
}

func spawnTestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestEnsureRuntimeSpawnsAndBecomesReady(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}
	bin := buildFakeServer(t)
	m, pub := newRuntimeTestManager(t, bin, nil)
	modelPath := t.TempDir()

	rt, err := m.ensureRuntime(spawnTestContext(t), modelPath)
	if err != nil {
		t.Fatalf("ensureRuntime: %v", err)
	}
	if rt.State != StateReady || rt.Port <= 0 || rt.PID <= 0 {
		t.Fatalf("runtime not ready: %+v", rt)
	}
	var startOK, readyOK bool
	for _, e := range pub.Events() {
		if e.Name == "spawn_start" {
			startOK = true
		}
		if e.Name == "spawn_ready" {
			readyOK = true
		}
	}
	if !startOK || !readyOK {
		t.Fatalf("expected spawn_start and spawn_ready events, got: %+v", pub.Events())
	}

	m.stopRuntime(modelPath)
	m.mu.RLock()
	left := len(m.runtimes)
	m.mu.RUnlock()
	if left != 0 {
		t.Fatalf("expected no cached runtimes after stop, got %d", left)
	}
}

func TestEnsureRuntimeEarlyExitReportsStderr(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}
	bin := buildFakeServer(t)
	m, pub := newRuntimeTestManager(t, bin, nil)
	t.Setenv("MLXD_FAKE_SERVER_MODE", "exit")

	_, err := m.ensureRuntime(spawnTestContext(t), t.TempDir())
	if err == nil {
		t.Fatal("expected error for early exit")
	}
	if !strings.Contains(err.Error(), "model load failed") {
		t.Fatalf("stderr tail missing from error: %v", err)
	}
	var exitOK bool
	for _, e := range pub.Events() {
		if e.Name == "spawn_exit" {
			exitOK = true
		}
	}
	if !exitOK {
		t.Fatalf("expected spawn_exit event, got: %+v", pub.Events())
	}
	m.mu.RLock()
	left := len(m.runtimes)
	m.mu.RUnlock()
	if left != 0 {
		t.Fatalf("failed spawn left a cached runtime")
	}
}

func TestEnsureRuntimeSpawnTimeout(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}
	bin := buildFakeServer(t)
	m, pub := newRuntimeTestManager(t, bin, func(cfg *ManagerConfig) {
		cfg.SpawnTimeout = 500 * time.Millisecond
	})
	t.Setenv("MLXD_FAKE_SERVER_MODE", "hang")

	_, err := m.ensureRuntime(spawnTestContext(t), t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "not ready in time") {
		t.Fatalf("expected readiness timeout, got %v", err)
	}
	var timeoutOK bool
	for _, e := range pub.Events() {
		if e.Name == "spawn_timeout" {
			timeoutOK = true
		}
	}
	if !timeoutOK {
		t.Fatalf("expected spawn_timeout event, got: %+v", pub.Events())
	}
}

func TestEnsureRuntimeMissingBinary(t *testing.T) {
	m, _ := newRuntimeTestManager(t, filepath.Join(t.TempDir(), "no-such-server"), nil)
	_, err := m.ensureRuntime(spawnTestContext(t), t.TempDir())
	if !IsDependencyUnavailable(err) {
		t.Fatalf("expected dependency-unavailable, got %v", err)
	}
}

func TestEnsureRuntimeSingleFlight(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}
	bin := buildFakeServer(t)
	m, _ := newRuntimeTestManager(t, bin, nil)
	modelPath := t.TempDir()
	ctx := spawnTestContext(t)

	const callers = 4
	pids := make([]int, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rt, err := m.ensureRuntime(ctx, modelPath)
			if err != nil {
				errs[i] = err
				return
			}
			pids[i] = rt.PID
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if pids[i] != pids[0] {
			t.Fatalf("callers saw different subprocesses: %v", pids)
		}
	}
	m.mu.RLock()
	cached := len(m.runtimes)
	m.mu.RUnlock()
	if cached != 1 {
		t.Fatalf("expected exactly one cached runtime, got %d", cached)
	}
}
