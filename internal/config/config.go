// Package config defines the typed configuration surface for the
// signaling broker, loaded from a YAML file with defaults merged in.
package config

import "time"

// Config is the top-level configuration document (configs/config.yaml).
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Timing   TimingConfig   `yaml:"timing"`
	Auth     AuthConfig     `yaml:"auth"`
	Provider ProviderConfig `yaml:"provider"`
	Security SecurityConfig `yaml:"security"`
	Room     RoomConfig     `yaml:"room"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Session  SessionConfig  `yaml:"session"`
}

// ServerConfig controls the signaling TCP listener and the admin HTTP
// surface served alongside it.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AdminPort      int      `yaml:"admin_port"`
	MaxConnections int      `yaml:"max_connections"`
	MaxMessageSize ByteSize `yaml:"max_message_size"`
	TLSEnabled     bool     `yaml:"tls_enabled"`
	TLSCertPath    string   `yaml:"tls_cert_path"`
	TLSKeyPath     string   `yaml:"tls_key_path"`
}

// TimingConfig carries every deadline named in the concurrency model.
type TimingConfig struct {
	RegistrationTimeout time.Duration `yaml:"registration_timeout"`
	HeartbeatInterval    time.Duration `yaml:"heartbeat_interval"`
	HeartbeatTimeout     time.Duration `yaml:"heartbeat_timeout"`
	ProviderTimeout      time.Duration `yaml:"provider_timeout"`
	RepositoryTimeout    time.Duration `yaml:"repository_timeout"`
	ShutdownGrace        time.Duration `yaml:"shutdown_grace"`
}

// AuthConfig configures token verification in the registration handler.
type AuthConfig struct {
	TokenSecret string   `yaml:"token_secret"`
	APIKeys     []string `yaml:"api_keys"` // "client_id:token" pairs
}

// ProviderConfig points at the external realtime-session provider.
type ProviderConfig struct {
	AppID     string `yaml:"app_id"`
	AppSecret string `yaml:"app_secret"`
	BaseURL   string `yaml:"base_url"`
	STUNURL   string `yaml:"stun_url"`
}

// SecurityConfig configures the connection admission checks performed
// before a socket is handed to the session manager, and the per-session
// message rate limit the broker applies to each inbound frame.
type SecurityConfig struct {
	RateLimitEnabled     bool     `yaml:"rate_limit_enabled"`
	MaxMessagesPerMinute int      `yaml:"max_messages_per_minute"`
	MaxConnectionsPerIP  int      `yaml:"max_connections_per_ip"`
	AllowedOrigins       []string `yaml:"allowed_origins"`
}

// RoomConfig configures room-orchestrator policy toggles.
type RoomConfig struct {
	AllowListenerFirst bool `yaml:"allow_listener_first"`
	SingleReceiver     bool `yaml:"single_receiver"`
}

// RedisConfig configures the durable repository/event-publisher backing.
// When Enabled is false the broker runs on the in-memory repository
// and event publisher instead, suited to local development and tests.
type RedisConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// LoggingConfig mirrors the ambient logging stack.
type LoggingConfig struct {
	Level    string   `yaml:"level"`
	Format   string   `yaml:"format"`
	Output   string   `yaml:"output"`
	FilePath string   `yaml:"file_path"`
	MaxSize  ByteSize `yaml:"max_size"`
	MaxAge   int      `yaml:"max_age"`
	Compress bool     `yaml:"compress"`
}

// MetricsConfig controls the Prometheus registry exposed on the admin
// HTTP surface.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// SessionConfig configures per-session resource limits.
type SessionConfig struct {
	SendQueueSize int `yaml:"send_queue_size"`
	MaxPerClient  int `yaml:"max_per_client"`
}
