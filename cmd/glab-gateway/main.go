// ABOUTME: Entry point for the glab-gateway MCP server
// ABOUTME: Subcommands for serving, config bootstrap, and health/stats checks

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/glab-gateway/internal/config"
	"github.com/2389/glab-gateway/internal/gateway"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
        _       _                       _
   __ _| | __ _| |__        __ _  __ _| |_ _____      ____ _ _   _
  / _' | |/ _' | '_ \ _____ / _' |/ _' | __/ _ \ \ /\ / / _' | | | |
 | (_| | | (_| | |_) |_____| (_| | (_| | ||  __/\ V  V / (_| | |_| |
  \__, |_|\__,_|_.__/       \__, |\__,_|\__\___| \_/\_/ \__,_|\__, |
  |___/                     |___/                             |___/
`

// getConfigPath returns the path to the gateway config file.
// Priority: GLAB_GATEWAY_CONFIG env var > XDG_CONFIG_HOME/glab-gateway/config.yaml > ~/.config/glab-gateway/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("GLAB_GATEWAY_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "glab-gateway", "config.yaml")
}

// loadConfig loads the config file if one exists at the resolved path,
// falling back to defaults plus environment overrides when it doesn't.
func loadConfig() (*config.Config, string, error) {
	configPath := getConfigPath()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg, err := config.Load("")
		return cfg, "(defaults)", err
	}
	cfg, err := config.Load(configPath)
	return cfg, configPath, err
}

func usage() {
	fmt.Println("Usage: glab-gateway <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve      Start the gateway server (default)")
	fmt.Println("  init       Write a starter config file")
	fmt.Println("  health     Check gateway health")
	fmt.Println("  sessions   Show session and event statistics")
	fmt.Println("  version    Print the version")
}

func main() {
	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch cmd {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	case "sessions":
		err = runSessions(ctx)
	case "version":
		fmt.Printf("glab-gateway %s\n", version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, configPath, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	// Startup info
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.Addr())
	green.Print("    ▶ ")
	fmt.Printf("Sessions: max %d, timeout %s\n", cfg.Sessions.MaxSessions, cfg.Sessions.Timeout)

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Print(" [funnel]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}

	fmt.Println()

	logger.Info("starting glab-gateway",
		"config", configPath,
		"http_addr", cfg.Server.Addr(),
		"max_sessions", cfg.Sessions.MaxSessions,
	)

	gw, err := gateway.New(cfg, version, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

// starterConfig is what `glab-gateway init` writes.
const starterConfig = `# glab-gateway configuration
# Generated by glab-gateway init

server:
  host: "127.0.0.1"
  port: 8080

sessions:
  max_sessions: 1000
  timeout: "60m"
  cleanup_interval: "5m"

tailscale:
  enabled: false
  # hostname: "glab-gateway"
  # auth_key: "${TS_AUTHKEY}"
  # https: true
  # funnel: false

logging:
  level: "info"
  format: "text"
`

func runInit() error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists: %s", configPath)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(starterConfig), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ Created config: %s\n", configPath)
	fmt.Println("\nTo start the server:")
	fmt.Println("  glab-gateway serve")

	return nil
}

func runHealth(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/healthz", cfg.Server.Addr())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	var body struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	fmt.Printf("healthy (version %s)\n", body.Version)
	return nil
}

func runSessions(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/api/stats", cfg.Server.Addr())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("stats check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stats request failed: status %d", resp.StatusCode)
	}

	var stats struct {
		Sessions struct {
			ActiveSessions int `json:"active_sessions"`
			MaxSessions    int `json:"max_sessions"`
			TimeoutMinutes int `json:"timeout_minutes"`
		} `json:"sessions"`
		Clients int `json:"clients"`
		Events  int `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	fmt.Printf("Sessions: %d active / %d max (timeout %dm)\n",
		stats.Sessions.ActiveSessions, stats.Sessions.MaxSessions, stats.Sessions.TimeoutMinutes)
	fmt.Printf("Clients:  %d\n", stats.Clients)
	fmt.Printf("Events:   %d\n", stats.Events)
	return nil
}
