package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads path as YAML, merges it onto DefaultConfig, and validates
// the result.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field-level invariants that defaults alone can't
// guarantee (e.g. a misconfigured file overriding a required value).
func Validate(cfg Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", cfg.Server.Port)
	}
	if cfg.Server.MaxConnections <= 0 {
		return fmt.Errorf("invalid server.max_connections: %d", cfg.Server.MaxConnections)
	}
	if cfg.Server.MaxMessageSize <= 0 {
		return fmt.Errorf("invalid server.max_message_size: %d", cfg.Server.MaxMessageSize)
	}
	if cfg.Timing.RegistrationTimeout <= 0 {
		return fmt.Errorf("invalid timing.registration_timeout: %s", cfg.Timing.RegistrationTimeout)
	}
	if cfg.Timing.HeartbeatInterval <= 0 {
		return fmt.Errorf("invalid timing.heartbeat_interval: %s", cfg.Timing.HeartbeatInterval)
	}
	if cfg.Timing.HeartbeatTimeout <= cfg.Timing.HeartbeatInterval {
		return fmt.Errorf("timing.heartbeat_timeout must exceed heartbeat_interval")
	}
	if cfg.Timing.ProviderTimeout <= 0 {
		return fmt.Errorf("invalid timing.provider_timeout: %s", cfg.Timing.ProviderTimeout)
	}
	if cfg.Timing.RepositoryTimeout <= 0 {
		return fmt.Errorf("invalid timing.repository_timeout: %s", cfg.Timing.RepositoryTimeout)
	}
	if cfg.Timing.ShutdownGrace <= 0 {
		return fmt.Errorf("invalid timing.shutdown_grace: %s", cfg.Timing.ShutdownGrace)
	}
	if cfg.Provider.BaseURL == "" {
		return fmt.Errorf("provider.base_url is required")
	}
	if cfg.Session.SendQueueSize <= 0 {
		return fmt.Errorf("invalid session.send_queue_size: %d", cfg.Session.SendQueueSize)
	}
	if cfg.Session.MaxPerClient <= 0 {
		return fmt.Errorf("invalid session.max_per_client: %d", cfg.Session.MaxPerClient)
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Output == "file" && cfg.Logging.FilePath == "" {
		return fmt.Errorf("logging.file_path is required when output=file")
	}
	return nil
}
