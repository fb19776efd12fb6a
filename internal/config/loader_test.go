package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "addr: :9999\nmodels_dir: /tmp/mlx\nconvert_bin: my-convert\nmax_runtimes: 2\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.ModelsDir != "/tmp/mlx" || cfg.ConvertBin != "my-convert" || cfg.MaxRuntimes != 2 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":7070","models_dir":"/m","prompts_file":"/p.json","min_free_disk_mb":512}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.ModelsDir != "/m" || cfg.PromptsFile != "/p.json" || cfg.MinFreeDiskMB != 512 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":8081\"\nmodels_dir=\"/x\"\nserver_bin=\"srv\"\nlog_level=\"debug\"\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.ModelsDir != "/x" || cfg.ServerBin != "srv" || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
}

func TestResolveDefaultsAndFile(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "addr: :7001\n")
	cfg, err := Resolve(p)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Addr != ":7001" {
		t.Fatalf("file value not applied: %s", cfg.Addr)
	}
	// untouched fields keep defaults
	if cfg.ConvertBin != "mlx_lm.convert" || cfg.MaxRuntimes != 1 {
		t.Fatalf("defaults missing: %+v", cfg)
	}
}

func TestResolveEnvOverridesFile(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "addr: :7001\n")
	t.Setenv("MLXD_ADDR", ":7002")
	t.Setenv("MLXD_CORS_ORIGINS", "http://a.test, http://b.test")
	cfg, err := Resolve(p)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Addr != ":7002" {
		t.Fatalf("env did not win: %s", cfg.Addr)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.test" {
		t.Fatalf("cors origins: %v", cfg.CORSOrigins)
	}
}

func TestResolveBadFile(t *testing.T) {
	if _, err := Resolve("/definitely/not/here.yaml"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
