package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ByteSize supports YAML values like "1MiB", "100MB", "512KB", "1024".
type ByteSize int64

// Int64 returns the byte count as an int64.
func (b ByteSize) Int64() int64 { return int64(b) }

// UnmarshalYAML parses a human-readable byte size.
func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		*b = 0
		return nil
	}
	v := strings.TrimSpace(value.Value)
	if v == "" {
		*b = 0
		return nil
	}
	n, err := parseByteSize(v)
	if err != nil {
		return err
	}
	*b = ByteSize(n)
	return nil
}

func parseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	mult := int64(1)
	switch {
	case strings.HasSuffix(s, "GIB"), strings.HasSuffix(s, "GB"):
		mult = 1024 * 1024 * 1024
		s = strings.TrimSuffix(strings.TrimSuffix(s, "GIB"), "GB")
	case strings.HasSuffix(s, "MIB"), strings.HasSuffix(s, "MB"):
		mult = 1024 * 1024
		s = strings.TrimSuffix(strings.TrimSuffix(s, "MIB"), "MB")
	case strings.HasSuffix(s, "KIB"), strings.HasSuffix(s, "KB"):
		mult = 1024
		s = strings.TrimSuffix(strings.TrimSuffix(s, "KIB"), "KB")
	case strings.HasSuffix(s, "B"):
		mult = 1
		s = strings.TrimSuffix(s, "B")
	}
	s = strings.TrimSpace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}
	if f < 0 {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}
	return int64(f * float64(mult)), nil
}

// DefaultConfig returns a fully populated configuration matching the
// defaults named in the external-interfaces section of the protocol
// documentation; a loaded YAML file is merged on top of this.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           7443,
			AdminPort:      7444,
			MaxConnections: 1000,
			MaxMessageSize: ByteSize(1024 * 1024),
			TLSEnabled:     false,
		},
		Timing: TimingConfig{
			RegistrationTimeout: 10 * time.Second,
			HeartbeatInterval:   30 * time.Second,
			HeartbeatTimeout:    90 * time.Second,
			ProviderTimeout:     10 * time.Second,
			RepositoryTimeout:   5 * time.Second,
			ShutdownGrace:       10 * time.Second,
		},
		Auth: AuthConfig{},
		Provider: ProviderConfig{
			BaseURL: "https://rtc.live.cloudflare.com/v1",
			STUNURL: "stun:stun.cloudflare.com:3478",
		},
		Security: SecurityConfig{
			RateLimitEnabled:     true,
			MaxMessagesPerMinute: 600,
			MaxConnectionsPerIP:  20,
		},
		Room: RoomConfig{
			AllowListenerFirst: false,
			SingleReceiver:     true,
		},
		Redis: RedisConfig{
			Addr:      "127.0.0.1:6379",
			DB:        0,
			KeyPrefix: "signalbroker",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "/var/log/signalbroker/broker.log",
			MaxSize:  ByteSize(100 * 1024 * 1024),
			MaxAge:   7,
			Compress: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Session: SessionConfig{
			SendQueueSize: 256,
			MaxPerClient:  1,
		},
	}
}
