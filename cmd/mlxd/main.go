package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"mlxd/internal/config"
	"mlxd/internal/httpapi"
	"mlxd/internal/manager"
	"mlxd/internal/registry"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath     string
		openBrowser bool
		flagCfg     config.Config
	)

	root := &cobra.Command{
		Use:           "mlxd",
		Short:         "Local daemon and browser panel for MLX model conversion and text generation",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Resolve(cfgPath)
			if err != nil {
				return err
			}
			overrideFromFlags(cmd, &cfg, flagCfg)
			return runServe(cfg, openBrowser)
		},
	}

	f := root.Flags()
	f.StringVarP(&cfgPath, "config", "c", "", "Config file (.yaml, .json or .toml)")
	f.BoolVar(&openBrowser, "open", false, "Open the control panel in the default browser after start")
	f.StringVar(&flagCfg.Addr, "addr", "", "HTTP listen address, e.g. :8090")
	f.StringVar(&flagCfg.ModelsDir, "models-dir", "", "Directory holding converted model artifacts")
	f.StringVar(&flagCfg.PromptsFile, "prompts-file", "", "JSON file with saved prompts for the panel")
	f.StringVar(&flagCfg.ConvertBin, "convert-bin", "", "Converter executable")
	f.StringVar(&flagCfg.ServerBin, "server-bin", "", "Inference server executable")
	f.IntVar(&flagCfg.MaxRuntimes, "max-runtimes", 0, "Maximum concurrent inference runtimes")
	f.IntVar(&flagCfg.MinFreeDiskMB, "min-free-disk-mb", 0, "Free disk required before a conversion starts")
	f.StringVar(&flagCfg.LogLevel, "log-level", "", "Log level: debug|info|warn|error")
	f.StringVar(&flagCfg.LogDir, "log-dir", "", "Directory for rotated log files (stderr only if empty)")

	root.AddCommand(newVersionCmd())
	return root
}

// overrideFromFlags applies only the flags the user actually set, so file
// and env values survive unset flags.
func overrideFromFlags(cmd *cobra.Command, dst *config.Config, src config.Config) {
	set := func(name string) bool { return cmd.Flags().Changed(name) }
	if set("addr") {
		dst.Addr = src.Addr
	}
	if set("models-dir") {
		dst.ModelsDir = src.ModelsDir
	}
	if set("prompts-file") {
		dst.PromptsFile = src.PromptsFile
	}
	if set("convert-bin") {
		dst.ConvertBin = src.ConvertBin
	}
	if set("server-bin") {
		dst.ServerBin = src.ServerBin
	}
	if set("max-runtimes") {
		dst.MaxRuntimes = src.MaxRuntimes
	}
	if set("min-free-disk-mb") {
		dst.MinFreeDiskMB = src.MinFreeDiskMB
	}
	if set("log-level") {
		dst.LogLevel = src.LogLevel
	}
	if set("log-dir") {
		dst.LogDir = src.LogDir
	}
}

func runServe(cfg config.Config, openBrowser bool) error {
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	reg, err := registry.New(cfg.ModelsDir)
	if err != nil {
		return fmt.Errorf("loading models dir: %w", err)
	}

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	go func() {
		if err := reg.Watch(baseCtx, log); err != nil {
			log.Warn().Err(err).Msg("models dir watcher stopped")
		}
	}()

	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Registry:      reg,
		ConvertBin:    cfg.ConvertBin,
		ServerBin:     cfg.ServerBin,
		RuntimeHost:   cfg.RuntimeHost,
		PortStart:     cfg.PortStart,
		PortEnd:       cfg.PortEnd,
		MaxRuntimes:   cfg.MaxRuntimes,
		MaxQueueDepth: cfg.MaxQueueDepth,
		MaxWait:       time.Duration(cfg.MaxWaitSeconds) * time.Second,
		MinFreeDiskMB: cfg.MinFreeDiskMB,
		Logger:        log,
	})

	httpapi.SetLogger(log)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins)
	httpapi.SetBaseContext(baseCtx)

	mux := httpapi.NewMux(mgr, cfg.PromptsFile)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("models_dir", reg.Dir()).Msg("mlxd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	if openBrowser {
		go openPanel(log, cfg.Addr)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	cancelBase()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown")
	}
	return mgr.Close()
}

func newLogger(cfg config.Config) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q", cfg.LogLevel)
	}

	var sink io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return zerolog.Logger{}, fmt.Errorf("creating log dir: %w", err)
		}
		sink = zerolog.MultiLevelWriter(sink, &lumberjack.Logger{
			Filename:   filepath.Join(cfg.LogDir, "mlxd.log"),
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     14,
			Compress:   true,
		})
	}
	return zerolog.New(sink).Level(level).With().Timestamp().Logger(), nil
}

// openPanel opens the control panel in the default browser once the
// server answers.
func openPanel(log zerolog.Logger, addr string) {
	url := panelURL(addr)
	for i := 0; i < 20; i++ {
		resp, err := http.Get(url + "/healthz")
		if err == nil {
			resp.Body.Close()
			break
		}
		time.Sleep(250 * time.Millisecond)
	}
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Warn().Err(err).Str("url", url).Msg("could not open browser")
	}
}

// panelURL turns a listen address into a browsable URL.
func panelURL(addr string) string {
	host, port := "127.0.0.1", ""
	if h, p, err := net.SplitHostPort(addr); err == nil {
		if h != "" && h != "0.0.0.0" && h != "::" {
			host = h
		}
		port = p
	}
	if port == "" {
		return "http://" + host
	}
	return "http://" + host + ":" + port
}
