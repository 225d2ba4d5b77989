// Package config loads the runtime's YAML configuration and keeps a
// hot-reloadable snapshot of it.
package config

import (
	"fmt"
	"os"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/edgecomet/mcprt/internal/common/configtypes"
	"github.com/edgecomet/mcprt/internal/common/yamlutil"
)

var _ configtypes.Manager = (*Manager)(nil)

// Manager loads configtypes.Config from a YAML file and exposes an
// atomically-swapped snapshot of it. Reload replaces the snapshot
// wholesale; callers already holding a *configtypes.Config from
// GetConfig keep reading the old values until they call GetConfig
// again.
type Manager struct {
	path   string
	logger *zap.Logger
	cfg    atomic.Pointer[configtypes.Config]
}

// NewManager loads path and returns a Manager, or an error if the
// file cannot be read or parsed.
func NewManager(path string, logger *zap.Logger) (*Manager, error) {
	m := &Manager{path: path, logger: logger}
	if err := m.Reload(); err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}
	return m, nil
}

// Reload re-reads the configuration file and, on success, swaps the
// live snapshot. A parse or validation failure leaves the previous
// snapshot in place.
func (m *Manager) Reload() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return err
	}

	var cfg configtypes.Config
	if err := yamlutil.UnmarshalStrict(data, &cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	m.cfg.Store(&cfg)
	if m.logger != nil {
		m.logger.Info("configuration loaded", zap.String("path", m.path))
	}
	return nil
}

// GetConfig returns the current configuration snapshot.
func (m *Manager) GetConfig() *configtypes.Config {
	return m.cfg.Load()
}

func applyDefaults(cfg *configtypes.Config) {
	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
	}
	if cfg.Log.Console.Format == "" {
		cfg.Log.Console.Format = configtypes.LogFormatConsole
	}
	if cfg.Log.File.Format == "" {
		cfg.Log.File.Format = configtypes.LogFormatText
	}
	if cfg.HTTP.Path == "" {
		cfg.HTTP.Path = "/mcp"
	}
	if cfg.HTTP.SSERingSize == 0 {
		cfg.HTTP.SSERingSize = 256
	}
	if cfg.HTTP.HeartbeatIntervalMs == 0 {
		cfg.HTTP.HeartbeatIntervalMs = 30000
	}
	if cfg.HTTP.CORSCacheSize == 0 {
		cfg.HTTP.CORSCacheSize = 8
	}
	if cfg.HTTP.BodyInitialBufferKiB == 0 {
		cfg.HTTP.BodyInitialBufferKiB = 4
	}
	if cfg.WebSocket.NumSegments == 0 {
		cfg.WebSocket.NumSegments = 16
	}
	if cfg.WebSocket.PingIntervalMs == 0 {
		cfg.WebSocket.PingIntervalMs = 20000
	}
	if cfg.WebSocket.PingTimeoutMs == 0 {
		cfg.WebSocket.PingTimeoutMs = 60000
	}
	if cfg.WebSocket.MaxPingFailures == 0 {
		cfg.WebSocket.MaxPingFailures = 3
	}
	if cfg.WebSocket.PoolBufferSizeKiB == 0 {
		cfg.WebSocket.PoolBufferSizeKiB = 4
	}
	if cfg.TCP.IdleTimeoutMs == 0 {
		cfg.TCP.IdleTimeoutMs = 300000
	}
	if cfg.TCP.MaxLineBytes == 0 {
		cfg.TCP.MaxLineBytes = 1 << 20
	}
	if cfg.RateLimit.WindowMs == 0 {
		cfg.RateLimit.WindowMs = 1000
	}
	if cfg.Session.Capacity == 0 {
		cfg.Session.Capacity = 10000
	}
	if cfg.Session.InactivityTimeoutMs == 0 {
		cfg.Session.InactivityTimeoutMs = 1800000
	}
	if cfg.Session.SweepIntervalMs == 0 {
		cfg.Session.SweepIntervalMs = 60000
	}
	if cfg.SchemaCache.Capacity == 0 {
		cfg.SchemaCache.Capacity = 1024
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "mcprt"
	}
	if cfg.MQTT.Mode == "" {
		cfg.MQTT.Mode = configtypes.MQTTModeClient
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "mcp"
	}
}

func validate(cfg *configtypes.Config) error {
	if cfg.MQTT.Enabled {
		switch cfg.MQTT.Mode {
		case configtypes.MQTTModeClient:
			if cfg.MQTT.BrokerURL == "" {
				return fmt.Errorf("mqtt.broker_url is required when mqtt is enabled in client mode")
			}
		case configtypes.MQTTModeEmbedded:
			if cfg.MQTT.EmbeddedListen == "" {
				return fmt.Errorf("mqtt.embedded_listen is required when mqtt is enabled in embedded mode")
			}
		default:
			return fmt.Errorf("mqtt.mode must be \"client\" or \"embedded\", got %q", cfg.MQTT.Mode)
		}
	}
	return nil
}
