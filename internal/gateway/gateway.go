// ABOUTME: Gateway orchestrator wiring the session registry, client pool, event log, and MCP server.
// ABOUTME: Manages TCP or Tailscale listeners, health/stats endpoints, and graceful shutdown.

package gateway

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/glab-gateway/internal/config"
	"github.com/2389/glab-gateway/internal/eventlog"
	"github.com/2389/glab-gateway/internal/gitlab"
	"github.com/2389/glab-gateway/internal/mcp"
	"github.com/2389/glab-gateway/internal/session"
	"github.com/2389/glab-gateway/internal/tools"
)

// shutdownTimeout bounds graceful shutdown after the run context ends.
const shutdownTimeout = 5 * time.Second

// Gateway orchestrates the glab-gateway server components: the session
// registry, the per-session GitLab client pool, the event log with its
// streams bridge, the tool registry, and the MCP HTTP surface.
type Gateway struct {
	config      *config.Config
	registry    *session.Registry
	pool        *gitlab.Pool
	eventLog    *eventlog.Log
	streams     *mcp.Streams
	tools       *tools.Registry
	mcpServer   *mcp.Server
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger
	version     string
}

// New creates a Gateway with every component constructed from the given
// configuration. Nothing is package-global; tests build as many
// independent gateways as they like.
func New(cfg *config.Config, version string, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	registry := session.NewRegistry(session.RegistryConfig{
		MaxSessions:   cfg.Sessions.MaxSessions,
		Timeout:       cfg.Sessions.Timeout,
		SweepInterval: cfg.Sessions.CleanupInterval,
		Logger:        logger,
	})
	pool := gitlab.NewPool(logger)
	eventLog := eventlog.NewLog(logger)
	streams := mcp.NewStreams(eventLog, logger)

	toolRegistry := tools.NewRegistry(logger)
	if err := tools.RegisterBuiltins(toolRegistry); err != nil {
		registry.Close()
		return nil, fmt.Errorf("registering builtin tools: %w", err)
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Registry: registry,
		Pool:     pool,
		Tools:    toolRegistry,
		Streams:  streams,
		Logger:   logger,
		Version:  version,
	})
	if err != nil {
		registry.Close()
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}

	gw := &Gateway{
		config:    cfg,
		registry:  registry,
		pool:      pool,
		eventLog:  eventLog,
		streams:   streams,
		tools:     toolRegistry,
		mcpServer: mcpServer,
		logger:    logger.With("component", "gateway"),
		version:   version,
	}

	mux := http.NewServeMux()
	mcpServer.RegisterRoutes(mux)
	mux.HandleFunc("/healthz", gw.handleHealthz)
	mux.HandleFunc("/api/stats", gw.handleStats)

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// Handler returns the gateway's HTTP handler. Exposed for tests.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Run starts the gateway server and blocks until the context is
// canceled or the server fails. Returns nil on graceful shutdown.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := g.setupListener(ctx)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the run context is
// already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown gracefully stops the HTTP server and releases resources:
// the registry sweep goroutine, live SSE subscribers, and pooled
// clients. Listeners close first so no new sessions arrive mid-teardown.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}

	if g.tsnetServer != nil {
		if err := g.tsnetServer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("tailscale shutdown: %w", err))
		}
	}

	g.streams.Close()
	g.registry.Close()
	g.pool.Clear()

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// setupListener creates the HTTP listener based on configuration
// (Tailscale or plain TCP).
func (g *Gateway) setupListener(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		return g.setupTailscaleListener(ctx)
	}

	addr := g.config.Server.Addr()
	g.logger.Info("starting gateway", "http_addr", addr)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// resolveTailscaleStateDir returns the state directory, using the
// default under the user's data dir if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "glab-gateway", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable (get one at https://login.tailscale.com/admin/settings/keys)")
	}
	return authKey, nil
}

// setupTailscaleListener starts a tsnet node and returns the HTTP
// listener appropriate for the configured exposure mode.
func (g *Gateway) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := g.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	g.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	g.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := g.tsnetServer.Up(ctx)
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	g.logTailscaleStatus(tsCfg.Hostname, status)

	return g.createTailscaleHTTPListener(tsCfg)
}

// logTailscaleStatus logs info about the tailscale node status.
func (g *Gateway) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		g.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	g.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}

// createTailscaleHTTPListener creates the appropriate listener based on
// the exposure mode: Funnel, HTTPS with Tailscale certs, or plain :80.
func (g *Gateway) createTailscaleHTTPListener(tsCfg config.TailscaleConfig) (net.Listener, error) {
	switch {
	case tsCfg.Funnel:
		g.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		ln, err := g.tsnetServer.ListenFunnel("tcp", ":443")
		if err != nil {
			_ = g.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale funnel port: %w", err)
		}
		return ln, nil
	case tsCfg.HTTPS:
		return g.createTailscaleTLSListener()
	default:
		ln, err := g.tsnetServer.Listen("tcp", ":80")
		if err != nil {
			_ = g.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
		}
		return ln, nil
	}
}

// createTailscaleTLSListener creates a TLS listener using Tailscale's
// auto-provisioned certs.
func (g *Gateway) createTailscaleTLSListener() (net.Listener, error) {
	g.logger.Info("enabling HTTPS with Tailscale certs on :443")
	ln, err := g.tsnetServer.Listen("tcp", ":443")
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTPS port: %w", err)
	}
	lc, err := g.tsnetServer.LocalClient()
	if err != nil {
		_ = ln.Close()
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("getting tailscale local client: %w", err)
	}
	return tls.NewListener(ln, &tls.Config{
		GetCertificate: lc.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}), nil
}

// handleHealthz returns liveness plus the running version.
func (g *Gateway) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"version": g.version,
	})
}

// statsResponse is the /api/stats payload.
type statsResponse struct {
	Sessions session.Stats `json:"sessions"`
	Clients  int           `json:"clients"`
	Events   int           `json:"events"`
}

// handleStats reports registry occupancy, pool size, and event count.
// Read-only; it does not touch any session's idle clock.
func (g *Gateway) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(statsResponse{
		Sessions: g.registry.Stats(),
		Clients:  g.pool.Count(),
		Events:   g.eventLog.EventCount(),
	})
}
