// ABOUTME: Tests for gateway configuration loading and validation.
// ABOUTME: Covers YAML and TOML files, env expansion, overrides, and durations.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 1000, cfg.Sessions.MaxSessions)
	assert.Equal(t, 60*time.Minute, cfg.Sessions.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.Sessions.CleanupInterval)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.False(t, cfg.Tailscale.Enabled)

	require.NoError(t, cfg.Validate())
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
server:
  host: "0.0.0.0"
  port: 9090

sessions:
  max_sessions: 50
  timeout: "30m"
  cleanup_interval: "1m"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Addr())
	assert.Equal(t, 50, cfg.Sessions.MaxSessions)
	assert.Equal(t, 30*time.Minute, cfg.Sessions.Timeout)
	assert.Equal(t, time.Minute, cfg.Sessions.CleanupInterval)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_TOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[server]
host = "localhost"
port = 7070

[sessions]
max_sessions = 10
timeout = "5m"

[logging]
level = "warn"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Sessions.MaxSessions)
	assert.Equal(t, 5*time.Minute, cfg.Sessions.Timeout)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
server:
  port: 9999
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 1000, cfg.Sessions.MaxSessions)
	assert.Equal(t, 60*time.Minute, cfg.Sessions.Timeout)
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server, cfg.Server)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", "server: [not a map")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_GLAB_HOST", "gateway.internal")

	path := writeConfig(t, "config.yaml", `
server:
  host: "${TEST_GLAB_HOST}"
  port: 8080
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gateway.internal", cfg.Server.Host)
}

func TestLoad_EnvVarExpansionUnset(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
tailscale:
  enabled: false
  auth_key: "${TEST_GLAB_UNSET_VAR}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Tailscale.AuthKey)
}

func TestLoad_EnvOverridesBeatFile(t *testing.T) {
	t.Setenv("GLAB_GATEWAY_PORT", "6060")
	t.Setenv("GLAB_GATEWAY_LOG_LEVEL", "error")
	t.Setenv("GLAB_GATEWAY_SESSION_TIMEOUT", "15m")

	path := writeConfig(t, "config.yaml", `
server:
  port: 9090

sessions:
  timeout: "30m"

logging:
  level: "debug"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 6060, cfg.Server.Port)
	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, 15*time.Minute, cfg.Sessions.Timeout)
}

func TestLoad_BadDuration(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
sessions:
  timeout: "sixty minutes"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sessions.timeout")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing host",
			mutate:  func(c *Config) { c.Server.Host = "" },
			wantErr: "server.host",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "server.port",
		},
		{
			name:    "zero port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port",
		},
		{
			name: "tailscale without hostname",
			mutate: func(c *Config) {
				c.Tailscale.Enabled = true
				c.Tailscale.Hostname = ""
			},
			wantErr: "tailscale.hostname",
		},
		{
			name: "tailscale ignores server address",
			mutate: func(c *Config) {
				c.Tailscale.Enabled = true
				c.Tailscale.Hostname = "glab-gateway"
				c.Server.Host = ""
				c.Server.Port = 0
			},
		},
		{
			name:    "non-positive max sessions",
			mutate:  func(c *Config) { c.Sessions.MaxSessions = 0 },
			wantErr: "sessions.max_sessions",
		},
		{
			name:    "non-positive timeout",
			mutate:  func(c *Config) { c.Sessions.Timeout = 0 },
			wantErr: "sessions.timeout",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
