// Package gateway orchestrates the glab-gateway server components.
//
// # Overview
//
// The gateway package is the central coordinator of the glab-gateway
// server. It constructs and owns all major components: the session
// registry, the per-session GitLab client pool, the event log and its
// SSE streams bridge, the tool registry, and the MCP HTTP server.
// Every component is an explicit constructed object with injected
// limits; nothing lives in package-level state, so tests can run many
// independent gateways side by side.
//
// # HTTP Surface
//
//   - POST/GET/DELETE /mcp - the MCP Streamable HTTP endpoint
//   - GET /healthz - liveness check with version
//   - GET /api/stats - session registry, client pool, and event log counts
//
// # Listeners
//
// By default the gateway serves plain TCP on server.host:server.port.
// With tailscale.enabled it joins the tailnet as its own node via tsnet
// and serves on :80, :443 with Tailscale certs (https), or publicly
// through Funnel (funnel).
//
// # Lifecycle
//
// Start the gateway:
//
//	gw, err := gateway.New(cfg, version, logger)
//	err = gw.Run(ctx) // blocks until ctx is canceled
//
// Run performs graceful shutdown when the context ends: the HTTP server
// drains with a 5s budget, then the registry sweep goroutine stops, SSE
// subscribers are closed, and pooled clients are dropped.
package gateway
