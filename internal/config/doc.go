// Package config handles configuration loading for glab-gateway.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files (chosen by file
// extension) with environment variable expansion, then overridden by
// GLAB_GATEWAY_* environment variables. The package provides validation
// and sensible defaults; a missing config file is not an error.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	tailscale:
//	  auth_key: "${TS_AUTHKEY}"
//
// Syntax: ${VAR_NAME}
//
// # Environment Overrides
//
// A few settings can be overridden directly from the environment,
// beating whatever the file says:
//
//	GLAB_GATEWAY_HOST             server.host
//	GLAB_GATEWAY_PORT             server.port
//	GLAB_GATEWAY_MAX_SESSIONS     sessions.max_sessions
//	GLAB_GATEWAY_SESSION_TIMEOUT  sessions.timeout
//	GLAB_GATEWAY_LOG_LEVEL        logging.level
//	TS_AUTHKEY                    tailscale.auth_key
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	sessions:
//	  timeout: "60m"
//	  cleanup_interval: "5m"
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  host: "127.0.0.1"
//	  port: 8080
//
// Session registry limits:
//
//	sessions:
//	  max_sessions: 1000
//	  timeout: "60m"
//	  cleanup_interval: "5m"
//
// Tailscale:
//
//	tailscale:
//	  enabled: false
//	  hostname: "glab-gateway"
//	  auth_key: "${TS_AUTHKEY}"
//	  https: true
//	  funnel: false
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Usage
//
// Load configuration from a path ("" means defaults + environment):
//
//	cfg, err := config.Load(path)
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
