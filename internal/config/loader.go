package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by defaults in Resolve.
type Config struct {
	Addr           string   `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir      string   `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	PromptsFile    string   `json:"prompts_file" yaml:"prompts_file" toml:"prompts_file"`
	ConvertBin     string   `json:"convert_bin" yaml:"convert_bin" toml:"convert_bin"`
	ServerBin      string   `json:"server_bin" yaml:"server_bin" toml:"server_bin"`
	RuntimeHost    string   `json:"runtime_host" yaml:"runtime_host" toml:"runtime_host"`
	PortStart      int      `json:"port_start" yaml:"port_start" toml:"port_start"`
	PortEnd        int      `json:"port_end" yaml:"port_end" toml:"port_end"`
	MaxRuntimes    int      `json:"max_runtimes" yaml:"max_runtimes" toml:"max_runtimes"`
	MaxQueueDepth  int      `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	MaxWaitSeconds int      `json:"max_wait_seconds" yaml:"max_wait_seconds" toml:"max_wait_seconds"`
	MinFreeDiskMB  int      `json:"min_free_disk_mb" yaml:"min_free_disk_mb" toml:"min_free_disk_mb"`
	MaxBodyBytes   int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	LogLevel       string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogDir         string   `json:"log_dir" yaml:"log_dir" toml:"log_dir"`
	CORSEnabled    bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins    []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:           ":8090",
		ModelsDir:      "~/models/mlx",
		ConvertBin:     "mlx_lm.convert",
		ServerBin:      "mlx_lm.server",
		RuntimeHost:    "127.0.0.1",
		MaxRuntimes:    1,
		MaxQueueDepth:  32,
		MaxWaitSeconds: 30,
		MinFreeDiskMB:  2048,
		MaxBodyBytes:   1 << 20,
		LogLevel:       "info",
	}
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// Resolve layers a config file (optional) and MLXD_* environment
// variables over the defaults. Precedence: env > file > defaults.
func Resolve(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		file, err := Load(path)
		if err != nil {
			return cfg, err
		}
		overlay(&cfg, file)
	}
	applyEnv(&cfg)
	return cfg, nil
}

// overlay copies every specified (non-zero) field of src onto dst.
func overlay(dst *Config, src Config) {
	if src.Addr != "" {
		dst.Addr = src.Addr
	}
	if src.ModelsDir != "" {
		dst.ModelsDir = src.ModelsDir
	}
	if src.PromptsFile != "" {
		dst.PromptsFile = src.PromptsFile
	}
	if src.ConvertBin != "" {
		dst.ConvertBin = src.ConvertBin
	}
	if src.ServerBin != "" {
		dst.ServerBin = src.ServerBin
	}
	if src.RuntimeHost != "" {
		dst.RuntimeHost = src.RuntimeHost
	}
	if src.PortStart > 0 {
		dst.PortStart = src.PortStart
	}
	if src.PortEnd > 0 {
		dst.PortEnd = src.PortEnd
	}
	if src.MaxRuntimes > 0 {
		dst.MaxRuntimes = src.MaxRuntimes
	}
	if src.MaxQueueDepth > 0 {
		dst.MaxQueueDepth = src.MaxQueueDepth
	}
	if src.MaxWaitSeconds > 0 {
		dst.MaxWaitSeconds = src.MaxWaitSeconds
	}
	if src.MinFreeDiskMB > 0 {
		dst.MinFreeDiskMB = src.MinFreeDiskMB
	}
	if src.MaxBodyBytes > 0 {
		dst.MaxBodyBytes = src.MaxBodyBytes
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.LogDir != "" {
		dst.LogDir = src.LogDir
	}
	if src.CORSEnabled {
		dst.CORSEnabled = true
	}
	if len(src.CORSOrigins) > 0 {
		dst.CORSOrigins = append([]string(nil), src.CORSOrigins...)
	}
}
