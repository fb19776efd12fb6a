package config

import (
	"strings"

	"github.com/spf13/viper"
)

// applyEnv overrides cfg fields from MLXD_* environment variables.
// Current values act as defaults, so unset variables change nothing.
func applyEnv(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix("MLXD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("addr", cfg.Addr)
	v.SetDefault("models_dir", cfg.ModelsDir)
	v.SetDefault("prompts_file", cfg.PromptsFile)
	v.SetDefault("convert_bin", cfg.ConvertBin)
	v.SetDefault("server_bin", cfg.ServerBin)
	v.SetDefault("runtime_host", cfg.RuntimeHost)
	v.SetDefault("port_start", cfg.PortStart)
	v.SetDefault("port_end", cfg.PortEnd)
	v.SetDefault("max_runtimes", cfg.MaxRuntimes)
	v.SetDefault("max_queue_depth", cfg.MaxQueueDepth)
	v.SetDefault("max_wait_seconds", cfg.MaxWaitSeconds)
	v.SetDefault("min_free_disk_mb", cfg.MinFreeDiskMB)
	v.SetDefault("max_body_bytes", cfg.MaxBodyBytes)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_dir", cfg.LogDir)
	v.SetDefault("cors_enabled", cfg.CORSEnabled)

	cfg.Addr = v.GetString("addr")
	cfg.ModelsDir = v.GetString("models_dir")
	cfg.PromptsFile = v.GetString("prompts_file")
	cfg.ConvertBin = v.GetString("convert_bin")
	cfg.ServerBin = v.GetString("server_bin")
	cfg.RuntimeHost = v.GetString("runtime_host")
	cfg.PortStart = v.GetInt("port_start")
	cfg.PortEnd = v.GetInt("port_end")
	cfg.MaxRuntimes = v.GetInt("max_runtimes")
	cfg.MaxQueueDepth = v.GetInt("max_queue_depth")
	cfg.MaxWaitSeconds = v.GetInt("max_wait_seconds")
	cfg.MinFreeDiskMB = v.GetInt("min_free_disk_mb")
	cfg.MaxBodyBytes = v.GetInt64("max_body_bytes")
	cfg.LogLevel = v.GetString("log_level")
	cfg.LogDir = v.GetString("log_dir")
	cfg.CORSEnabled = v.GetBool("cors_enabled")
	if s := v.GetString("cors_origins"); s != "" {
		cfg.CORSOrigins = splitCSV(s)
	}
}

// splitCSV splits a comma-separated list, trimming blanks.
func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
