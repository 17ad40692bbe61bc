// ABOUTME: Pool of per-session GitLab API clients keyed by session ID.
// ABOUTME: Guarantees at most one client instance per session until explicit removal.

package gitlab

import (
	"log/slog"
	"sync"

	"github.com/2389/glab-gateway/internal/session"
)

// Pool owns the mapping from session ID to Client. Clients are created
// lazily on first access and are never replaced implicitly: a stale
// client persists even if the session record is later recreated with
// different settings, until Remove or Clear drops it.
type Pool struct {
	mu      sync.RWMutex
	clients map[string]*Client

	base   *slog.Logger
	logger *slog.Logger
}

// NewPool creates an empty client pool.
func NewPool(logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		clients: make(map[string]*Client),
		base:    logger,
		logger:  logger.With("component", "client-pool"),
	}
}

// GetOrCreate returns the client for the session, constructing one
// from the record's configuration on first access.
func (p *Pool) GetOrCreate(sess session.Session) *Client {
	p.mu.RLock()
	client, ok := p.clients[sess.ID]
	p.mu.RUnlock()
	if ok {
		return client
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.clients[sess.ID]; ok {
		return existing
	}

	client = NewClient(sess.ID, sess.Config, p.base)
	p.clients[sess.ID] = client
	p.logger.Debug("api client created", "session_id", sess.ID, "pool_size", len(p.clients))
	return client
}

// Remove drops the client for the session and reports whether one
// existed.
func (p *Pool) Remove(sessionID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.clients[sessionID]; !ok {
		return false
	}
	delete(p.clients, sessionID)
	p.logger.Debug("api client removed", "session_id", sessionID, "pool_size", len(p.clients))
	return true
}

// Count returns the number of live clients.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.clients)
}

// Clear drops every client.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	removed := len(p.clients)
	p.clients = make(map[string]*Client)
	if removed > 0 {
		p.logger.Debug("api clients cleared", "removed", removed)
	}
}
