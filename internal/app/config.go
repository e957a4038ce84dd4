package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains runtime settings for the failover daemon.
type Config struct {
	NodeID   string
	LogLevel string

	// GRPCAddr serves both the peer and the admin services.
	GRPCAddr string
	// PeerAddr is the gRPC address of the other controller.
	PeerAddr string
	DataDir  string
	HostFile string

	MetricsAddr string
	PprofAddr   string

	TracingEnabled     bool
	TracingEndpoint    string
	TracingServiceName string

	NotifyFIFO   string
	FencedPath   string
	SentinelPath string

	ExportTimeout time.Duration
	PeerTimeout   time.Duration
	StatusTTL     time.Duration
	// ReasonsPoll is how often disabled reasons are recomputed in the
	// background. Zero disables polling.
	ReasonsPoll time.Duration

	StopFencedOnShutdown bool
}

// DefaultConfig returns a local-development configuration.
func DefaultConfig() Config {
	return Config{
		NodeID:               "node-a",
		LogLevel:             "info",
		GRPCAddr:             ":7070",
		PeerAddr:             "169.254.10.2:7070",
		DataDir:              "./var/node-a",
		HostFile:             "./host.yaml",
		TracingEndpoint:      "localhost:4317",
		TracingServiceName:   "ha-failover",
		NotifyFIFO:           "/var/run/keepalived.fifo",
		FencedPath:           "/usr/sbin/fenced",
		SentinelPath:         "/data/sentinels/.failover",
		ExportTimeout:        4 * time.Second,
		PeerTimeout:          5 * time.Second,
		StatusTTL:            300 * time.Second,
		ReasonsPoll:          10 * time.Second,
		StopFencedOnShutdown: true,
	}
}

// LoadConfigFromEnv loads config from environment variables.
//
// Supported vars:
// - APP_NODE_ID
// - APP_LOG_LEVEL (debug|info|warn|error)
// - APP_GRPC_ADDR
// - APP_PEER_ADDR
// - APP_DATA_DIR
// - APP_HOST_FILE
// - APP_METRICS_ADDR (empty = disabled)
// - APP_PPROF_ADDR (empty = disabled)
// - APP_TRACING_ENABLED (bool)
// - APP_TRACING_ENDPOINT
// - APP_TRACING_SERVICE_NAME
// - APP_NOTIFY_FIFO
// - APP_FENCED_PATH
// - APP_SENTINEL_PATH
// - APP_EXPORT_TIMEOUT, APP_PEER_TIMEOUT, APP_STATUS_TTL, APP_REASONS_POLL (durations)
// - APP_STOP_FENCED_ON_SHUTDOWN (bool)
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	strVars := map[string]*string{
		"APP_NODE_ID":              &cfg.NodeID,
		"APP_GRPC_ADDR":            &cfg.GRPCAddr,
		"APP_PEER_ADDR":            &cfg.PeerAddr,
		"APP_DATA_DIR":             &cfg.DataDir,
		"APP_HOST_FILE":            &cfg.HostFile,
		"APP_METRICS_ADDR":         &cfg.MetricsAddr,
		"APP_PPROF_ADDR":           &cfg.PprofAddr,
		"APP_TRACING_ENDPOINT":     &cfg.TracingEndpoint,
		"APP_TRACING_SERVICE_NAME": &cfg.TracingServiceName,
		"APP_NOTIFY_FIFO":          &cfg.NotifyFIFO,
		"APP_FENCED_PATH":          &cfg.FencedPath,
		"APP_SENTINEL_PATH":        &cfg.SentinelPath,
	}
	for name, dst := range strVars {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			*dst = v
		}
	}
	if v := strings.TrimSpace(os.Getenv("APP_LOG_LEVEL")); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	boolVars := map[string]*bool{
		"APP_TRACING_ENABLED":         &cfg.TracingEnabled,
		"APP_STOP_FENCED_ON_SHUTDOWN": &cfg.StopFencedOnShutdown,
	}
	for name, dst := range boolVars {
		v := strings.TrimSpace(os.Getenv(name))
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("app: invalid %s %q: %w", name, v, err)
		}
		*dst = b
	}

	durationVars := map[string]*time.Duration{
		"APP_EXPORT_TIMEOUT": &cfg.ExportTimeout,
		"APP_PEER_TIMEOUT":   &cfg.PeerTimeout,
		"APP_STATUS_TTL":     &cfg.StatusTTL,
		"APP_REASONS_POLL":   &cfg.ReasonsPoll,
	}
	for name, dst := range durationVars {
		v := strings.TrimSpace(os.Getenv(name))
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("app: invalid %s %q: %w", name, v, err)
		}
		*dst = d
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required settings are present and supported.
func (c Config) Validate() error {
	if strings.TrimSpace(c.NodeID) == "" {
		return fmt.Errorf("app: node id is required")
	}
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("app: unsupported log level %q", c.LogLevel)
	}
	if strings.TrimSpace(c.GRPCAddr) == "" {
		return fmt.Errorf("app: grpc addr is required")
	}
	if strings.TrimSpace(c.PeerAddr) == "" {
		return fmt.Errorf("app: peer addr is required")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("app: data dir is required")
	}
	if strings.TrimSpace(c.HostFile) == "" {
		return fmt.Errorf("app: host file is required")
	}
	if c.TracingEnabled && strings.TrimSpace(c.TracingEndpoint) == "" {
		return fmt.Errorf("app: tracing endpoint is required when tracing is enabled")
	}
	if c.ExportTimeout <= 0 {
		return fmt.Errorf("app: export timeout must be positive")
	}
	if c.PeerTimeout <= 0 {
		return fmt.Errorf("app: peer timeout must be positive")
	}
	if c.StatusTTL <= 0 {
		return fmt.Errorf("app: status ttl must be positive")
	}
	if c.ReasonsPoll < 0 {
		return fmt.Errorf("app: reasons poll must not be negative")
	}
	return nil
}
