// Package configtypes defines the shape of the runtime's YAML
// configuration file, independent of how it is loaded or hot-reloaded.
package configtypes

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
	LogFormatText    = "text"
)

// Config is the top-level shape of the runtime's YAML configuration.
type Config struct {
	Log         LogConfig         `yaml:"log"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	HTTP        HTTPConfig        `yaml:"http"`
	WebSocket   WebSocketConfig   `yaml:"websocket"`
	TCP         TCPConfig         `yaml:"tcp"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Session     SessionConfig     `yaml:"session"`
	SchemaCache SchemaCacheConfig `yaml:"schema_cache"`
}

type LogConfig struct {
	Level   string           `yaml:"level"`
	Console ConsoleLogConfig `yaml:"console"`
	File    FileLogConfig    `yaml:"file"`
}

type ConsoleLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Format  string `yaml:"format"`
	Level   string `yaml:"level,omitempty"`
}

type FileLogConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Path     string         `yaml:"path"`
	Format   string         `yaml:"format"`
	Level    string         `yaml:"level,omitempty"`
	Rotation RotationConfig `yaml:"rotation"`
}

type RotationConfig struct {
	MaxSize    int  `yaml:"max_size"`
	MaxAge     int  `yaml:"max_age"`
	MaxBackups int  `yaml:"max_backups"`
	Compress   bool `yaml:"compress"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Listen    string `yaml:"listen"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// HTTPConfig configures the Streamable HTTP transport.
type HTTPConfig struct {
	Listen               string   `yaml:"listen"`
	Path                 string   `yaml:"path"`
	OriginAllowlist      []string `yaml:"origin_allowlist"`
	SSERingSize          int      `yaml:"sse_ring_size"`
	HeartbeatIntervalMs  int      `yaml:"heartbeat_interval_ms"`
	CORSCacheSize        int      `yaml:"cors_cache_size"`
	BodyInitialBufferKiB int      `yaml:"body_initial_buffer_kib"`
}

// WebSocketConfig configures the WebSocket Server Transport.
type WebSocketConfig struct {
	Listen            string `yaml:"listen"`
	MaxClients        int    `yaml:"max_clients"`
	NumSegments       int    `yaml:"num_segments"`
	PingIntervalMs    int    `yaml:"ping_interval_ms"`
	PingTimeoutMs     int    `yaml:"ping_timeout_ms"`
	MaxPingFailures   int    `yaml:"max_ping_failures"`
	PoolBufferSizeKiB int    `yaml:"pool_buffer_size_kib"`
}

// TCPConfig configures the newline-delimited line transport.
type TCPConfig struct {
	Listen        string `yaml:"listen"`
	IdleTimeoutMs int    `yaml:"idle_timeout_ms"`
	MaxLineBytes  int    `yaml:"max_line_bytes"`
}

const (
	MQTTModeClient   = "client"
	MQTTModeEmbedded = "embedded"
)

// MQTTConfig configures the MQTT transport, in either client or
// embedded-broker mode.
type MQTTConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Mode           string `yaml:"mode"` // "client" or "embedded"
	BrokerURL      string `yaml:"broker_url"`
	ClientID       string `yaml:"client_id"`
	TopicPrefix    string `yaml:"topic_prefix"`
	EmbeddedListen string `yaml:"embedded_listen"`
}

type RateLimitConfig struct {
	WindowMs int `yaml:"window_ms"`
	Max      int `yaml:"max"`
}

type SessionConfig struct {
	Capacity            int `yaml:"capacity"`
	InactivityTimeoutMs int `yaml:"inactivity_timeout_ms"`
	SweepIntervalMs     int `yaml:"sweep_interval_ms"`
}

type SchemaCacheConfig struct {
	Capacity int `yaml:"capacity"`
}
