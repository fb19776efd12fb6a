//go:build unix

package manager

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mlxd/internal/common/fsutil"
	"mlxd/internal/registry"
	"mlxd/pkg/types"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "fake-convert")
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return p
}

func newTestManager(t *testing.T, mutate func(*ManagerConfig)) (*Manager, *MemoryPublisher) {
	t.Helper()
	reg, err := registry.New(t.TempDir())
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	pub := NewMemoryPublisher()
	cfg := ManagerConfig{
		Registry:  reg,
		Logger:    zerolog.Nop(),
		Publisher: pub,
		MaxWait:   time.Second,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	m := NewWithConfig(cfg)
	t.Cleanup(func() { _ = m.Close() })
	return m, pub
}

func TestValidateModelID(t *testing.T) {
	cases := []struct {
		id string
		ok bool
	}{
		{"LiquidAI/LFM2-1.2B-RAG", true},
		{"  org/name  ", true},
		{"", false},
		{"   ", false},
		{"no-slash", false},
		{"a/b/c", false},
		{"/name", false},
		{"org/", false},
	}
	for _, c := range cases {
		err := ValidateModelID(c.id)
		if c.ok && err != nil {
			t.Fatalf("ValidateModelID(%q) unexpected error: %v", c.id, err)
		}
		if !c.ok && !IsInvalidRequest(err) {
			t.Fatalf("ValidateModelID(%q) expected invalid-request error, got %v", c.id, err)
		}
	}
}

func TestConvertValidation(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	if _, err := m.Convert(ctx, types.ConvertRequest{Model: "bad"}); !IsInvalidRequest(err) {
		t.Fatalf("expected invalid model id error, got %v", err)
	}
	if _, err := m.Convert(ctx, types.ConvertRequest{Model: "org/name", Quantization: "2-bit"}); !IsInvalidRequest(err) {
		t.Fatalf("expected invalid quant error, got %v", err)
	}
	if _, err := m.Convert(ctx, types.ConvertRequest{Model: "org/name", Name: "../escape"}); !IsInvalidRequest(err) {
		t.Fatalf("expected invalid name error, got %v", err)
	}
}

// fake converter: creates the --mlx-path dir ($4) with a config and weights.
const okConvertScript = `out="$4"
mkdir -p "$out"
printf '{}' > "$out/config.json"
head -c 64 /dev/zero > "$out/model.safetensors"
`

func TestConvertSuccessDefaultName(t *testing.T) {
	m, pub := newTestManager(t, func(c *ManagerConfig) {
		c.ConvertBin = writeScript(t, okConvertScript)
	})
	resp, err := m.Convert(context.Background(), types.ConvertRequest{Model: "org/Tiny", Quantization: "8-bit"})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	want := filepath.Join(m.cfg.Registry.Dir(), "Tiny-q8")
	if resp.OutputPath != want {
		t.Fatalf("output=%s want %s", resp.OutputPath, want)
	}
	if resp.Quantization != "8-bit" || resp.Size == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if !fsutil.PathExists(resp.OutputPath) {
		t.Fatalf("output dir missing")
	}
	// registry picked it up
	if _, ok := m.cfg.Registry.Lookup("Tiny-q8"); !ok {
		t.Fatalf("artifact not registered")
	}
	// events: start then done
	evs := pub.Events()
	if len(evs) != 2 || evs[0].Name != "convert_start" || evs[1].Name != "convert_done" {
		t.Fatalf("unexpected events: %+v", evs)
	}
}

func TestConvertBF16NoQuantFlags(t *testing.T) {
	// bf16 passes no quant flags, so the output path is still $4.
	m, _ := newTestManager(t, func(c *ManagerConfig) {
		c.ConvertBin = writeScript(t, okConvertScript)
	})
	resp, err := m.Convert(context.Background(), types.ConvertRequest{Model: "org/Tiny", Quantization: "bf16"})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if filepath.Base(resp.OutputPath) != "Tiny-bf16" {
		t.Fatalf("output=%s", resp.OutputPath)
	}
}

func TestConvertAlreadyExists(t *testing.T) {
	m, _ := newTestManager(t, func(c *ManagerConfig) {
		c.ConvertBin = writeScript(t, okConvertScript)
	})
	taken := filepath.Join(m.cfg.Registry.Dir(), "taken")
	if err := os.MkdirAll(taken, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	_, err := m.Convert(context.Background(), types.ConvertRequest{Model: "org/x", Name: "taken"})
	if !IsAlreadyExists(err) {
		t.Fatalf("expected already-exists error, got %v", err)
	}
}

func TestConvertNotFoundMapping(t *testing.T) {
	m, _ := newTestManager(t, func(c *ManagerConfig) {
		c.ConvertBin = writeScript(t, `echo "404 Client Error: repository not found" >&2; exit 1`)
	})
	_, err := m.Convert(context.Background(), types.ConvertRequest{Model: "org/ghost"})
	if !IsModelNotFound(err) {
		t.Fatalf("expected model-not-found error, got %v", err)
	}
	// partial output (none here) must not linger
	if fsutil.PathExists(filepath.Join(m.cfg.Registry.Dir(), "ghost-q4")) {
		t.Fatalf("partial output left behind")
	}
}

func TestConvertFailureCleansPartialOutput(t *testing.T) {
	m, _ := newTestManager(t, func(c *ManagerConfig) {
		c.ConvertBin = writeScript(t, `out="$4"
mkdir -p "$out"
printf 'partial' > "$out/config.json"
echo "boom" >&2
exit 1`)
	})
	_, err := m.Convert(context.Background(), types.ConvertRequest{Model: "org/Tiny"})
	if err == nil {
		t.Fatalf("expected failure")
	}
	if fsutil.PathExists(filepath.Join(m.cfg.Registry.Dir(), "Tiny-q4")) {
		t.Fatalf("partial output left behind")
	}
}

func TestConvertMissingBinary(t *testing.T) {
	m, _ := newTestManager(t, func(c *ManagerConfig) {
		c.ConvertBin = "definitely-not-installed-mlx-convert"
	})
	_, err := m.Convert(context.Background(), types.ConvertRequest{Model: "org/x"})
	if !IsDependencyUnavailable(err) {
		t.Fatalf("expected dependency-unavailable error, got %v", err)
	}
}

func TestConvertCleanExitNoOutput(t *testing.T) {
	m, _ := newTestManager(t, func(c *ManagerConfig) {
		c.ConvertBin = writeScript(t, `exit 0`)
	})
	_, err := m.Convert(context.Background(), types.ConvertRequest{Model: "org/x"})
	if err == nil {
		t.Fatalf("expected error when converter produced no output")
	}
}

func TestConvertBusy(t *testing.T) {
	m, _ := newTestManager(t, nil)
	m.convertMu.Lock()
	defer m.convertMu.Unlock()
	_, err := m.Convert(context.Background(), types.ConvertRequest{Model: "org/x"})
	if !IsTooBusy(err) {
		t.Fatalf("expected too-busy error, got %v", err)
	}
}

func TestTailBuffer(t *testing.T) {
	tb := newTailBuffer(8)
	if _, err := tb.Write([]byte("0123456789abcdef")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := tb.String(); got != "89abcdef" {
		t.Fatalf("tail=%q", got)
	}
}
