// ABOUTME: Server configuration for glab-gateway, loaded from YAML or TOML files.
// ABOUTME: Supports ${VAR} expansion, duration strings, and environment overrides.

package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// Defaults applied by DefaultConfig.
const (
	DefaultHost            = "127.0.0.1"
	DefaultPort            = 8080
	DefaultMaxSessions     = 1000
	DefaultSessionTimeout  = 60 * time.Minute
	DefaultCleanupInterval = 5 * time.Minute
)

// Config represents the complete glab-gateway configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Sessions  SessionsConfig  `yaml:"sessions" toml:"sessions"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// ServerConfig holds the HTTP listen address.
type ServerConfig struct {
	Host string `yaml:"host" toml:"host" env:"GLAB_GATEWAY_HOST"`
	Port int    `yaml:"port" toml:"port" env:"GLAB_GATEWAY_PORT"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// SessionsConfig holds the session registry limits.
type SessionsConfig struct {
	MaxSessions     int           `yaml:"max_sessions" toml:"max_sessions" env:"GLAB_GATEWAY_MAX_SESSIONS"`
	Timeout         time.Duration `yaml:"-" toml:"-"`
	CleanupInterval time.Duration `yaml:"-" toml:"-"`

	// Raw string values for file unmarshaling
	TimeoutRaw         string `yaml:"timeout" toml:"timeout" env:"GLAB_GATEWAY_SESSION_TIMEOUT"`
	CleanupIntervalRaw string `yaml:"cleanup_interval" toml:"cleanup_interval"`
}

// TailscaleConfig holds Tailscale tsnet configuration.
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key" env:"TS_AUTHKEY"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	HTTPS     bool   `yaml:"https" toml:"https"`   // TLS with Tailscale-provisioned certs
	Funnel    bool   `yaml:"funnel" toml:"funnel"` // Enable public Funnel (implies HTTPS)
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level" env:"GLAB_GATEWAY_LOG_LEVEL"`
	Format string `yaml:"format" toml:"format"`
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		Sessions: SessionsConfig{
			MaxSessions:     DefaultMaxSessions,
			Timeout:         DefaultSessionTimeout,
			CleanupInterval: DefaultCleanupInterval,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a configuration file and returns a parsed Config. The
// format is chosen by extension: .toml is TOML, everything else YAML.
// Environment variables in the format ${VAR_NAME} are expanded in the
// raw file content, duration strings are parsed, and GLAB_GATEWAY_*
// environment overrides are applied last. An empty path yields the
// defaults plus environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		// Expand environment variables in the raw file content
		expanded := expandEnvVars(string(data))

		if filepath.Ext(path) == ".toml" {
			if _, err := toml.Decode(expanded, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	// Environment overrides beat file values
	if err := envdecode.Decode(cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return nil, fmt.Errorf("decoding environment overrides: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables become empty strings.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Sessions.TimeoutRaw != "" {
		cfg.Sessions.Timeout, err = time.ParseDuration(cfg.Sessions.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing sessions.timeout %q: %w", cfg.Sessions.TimeoutRaw, err)
		}
	}

	if cfg.Sessions.CleanupIntervalRaw != "" {
		cfg.Sessions.CleanupInterval, err = time.ParseDuration(cfg.Sessions.CleanupIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing sessions.cleanup_interval %q: %w", cfg.Sessions.CleanupIntervalRaw, err)
		}
	}

	return nil
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if !c.Tailscale.Enabled {
		if c.Server.Host == "" {
			return fmt.Errorf("server.host is required (or enable tailscale)")
		}
		if c.Server.Port < 1 || c.Server.Port > 65535 {
			return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
		}
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Sessions.MaxSessions < 1 {
		return fmt.Errorf("sessions.max_sessions must be positive, got %d", c.Sessions.MaxSessions)
	}
	if c.Sessions.Timeout <= 0 {
		return fmt.Errorf("sessions.timeout must be positive, got %s", c.Sessions.Timeout)
	}
	if c.Sessions.CleanupInterval <= 0 {
		return fmt.Errorf("sessions.cleanup_interval must be positive, got %s", c.Sessions.CleanupInterval)
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}
