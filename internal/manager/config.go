package manager

import (
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mlxd/internal/registry"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultMaxRuntimes   = 1
	defaultMaxQueueDepth = 32
	defaultMaxWait       = 30 * time.Second
	defaultMinFreeDiskMB = 2048
	defaultSpawnTimeout  = 120 * time.Second
	defaultConvertBin    = "mlx_lm.convert"
	defaultServerBin     = "mlx_lm.server"
	defaultRuntimeHost   = "127.0.0.1"
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	Registry    *registry.Registry
	ConvertBin  string
	ServerBin   string
	RuntimeHost string
	PortStart   int
	PortEnd     int
	// Cache/queue tuning
	MaxRuntimes   int
	MaxQueueDepth int
	MaxWait       time.Duration
	// Conversion preflight
	MinFreeDiskMB int
	// Runtime readiness
	SpawnTimeout time.Duration

	Logger    zerolog.Logger
	Publisher EventPublisher
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	if cfg.ConvertBin == "" {
		cfg.ConvertBin = defaultConvertBin
	}
	if cfg.ServerBin == "" {
		cfg.ServerBin = defaultServerBin
	}
	if cfg.RuntimeHost == "" {
		cfg.RuntimeHost = defaultRuntimeHost
	}
	if cfg.MaxRuntimes <= 0 {
		cfg.MaxRuntimes = defaultMaxRuntimes
	}
	if cfg.MaxQueueDepth <= 0 {
		cfg.MaxQueueDepth = defaultMaxQueueDepth
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = defaultMaxWait
	}
	if cfg.MinFreeDiskMB <= 0 {
		cfg.MinFreeDiskMB = defaultMinFreeDiskMB
	}
	if cfg.SpawnTimeout <= 0 {
		cfg.SpawnTimeout = defaultSpawnTimeout
	}
	pub := cfg.Publisher
	if pub == nil {
		pub = noopPublisher{}
	}
	return &Manager{
		cfg:       cfg,
		log:       cfg.Logger,
		publisher: pub,
		runtimes:  make(map[string]*Runtime),
		spawns:    make(map[string]*sync.Mutex),
		// Timeout=0: all runtime calls carry context-based deadlines.
		httpClient: &http.Client{Timeout: 0},
		startTime:  time.Now(),
	}
}
