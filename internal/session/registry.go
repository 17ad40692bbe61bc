// ABOUTME: Bounded, idle-expiring registry of MCP session records.
// ABOUTME: Pairs lazy expiry on lookup with a periodic background sweep.

package session

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Registry defaults, used when RegistryConfig leaves a field unset.
const (
	DefaultMaxSessions   = 1000
	DefaultTimeout       = 60 * time.Minute
	DefaultSweepInterval = 5 * time.Minute
)

// Session is one tenant's registry record. The registry hands out
// copies; the stored record never escapes.
type Session struct {
	ID        string
	Config    *Config
	CreatedAt time.Time
	LastUsed  time.Time
}

// Stats reports registry occupancy for diagnostics.
type Stats struct {
	ActiveSessions int `json:"active_sessions"`
	MaxSessions    int `json:"max_sessions"`
	TimeoutMinutes int `json:"timeout_minutes"`
}

// RegistryConfig contains configuration options for the Registry.
type RegistryConfig struct {
	MaxSessions   int
	Timeout       time.Duration
	SweepInterval time.Duration
	Logger        *slog.Logger
}

// Registry owns the mapping from session ID to configuration and
// timestamps. It enforces a soft capacity bound (eviction of the least
// recently used ~10% on create) and an idle timeout (lazy on lookup
// plus the sweep goroutine).
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	maxSessions   int
	timeout       time.Duration
	sweepInterval time.Duration
	logger        *slog.Logger

	done   chan struct{}
	closed bool
}

// NewRegistry creates a registry and starts its background sweep.
// Call Close to stop the sweep goroutine.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		sessions:      make(map[string]*Session),
		maxSessions:   cfg.MaxSessions,
		timeout:       cfg.Timeout,
		sweepInterval: cfg.SweepInterval,
		logger:        logger.With("component", "session-registry"),
		done:          make(chan struct{}),
	}

	go r.sweep()

	return r
}

// Create validates raw input and inserts a new record with
// createdAt = lastUsed = now, overwriting any existing record for the
// same ID. At capacity it first evicts the least recently used ~10%.
// A validation failure is returned as-is and inserts nothing.
func (r *Registry) Create(sessionID string, raw map[string]string) (Session, error) {
	cfg, err := ParseConfig(raw)
	if err != nil {
		return Session{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.sessions) >= r.maxSessions {
		r.evictOldest()
	}

	now := time.Now()
	sess := &Session{ID: sessionID, Config: cfg, CreatedAt: now, LastUsed: now}
	r.sessions[sessionID] = sess

	r.logger.Info("session created",
		"session_id", sessionID,
		"api_url", cfg.APIURL,
		"read_only", cfg.ReadOnly,
		"active", len(r.sessions),
	)
	return *sess, nil
}

// Get returns the record for sessionID and refreshes its lastUsed
// timestamp. A record whose idle age already exceeds the timeout is
// deleted instead and reported as absent.
func (r *Registry) Get(sessionID string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return Session{}, false
	}

	now := time.Now()
	if idle := now.Sub(sess.LastUsed); idle > r.timeout {
		delete(r.sessions, sessionID)
		r.logger.Info("session expired", "session_id", sessionID, "idle", idle)
		return Session{}, false
	}

	sess.LastUsed = now
	return *sess, true
}

// Remove deletes the record unconditionally and reports whether one
// existed.
func (r *Registry) Remove(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[sessionID]; !ok {
		return false
	}
	delete(r.sessions, sessionID)
	r.logger.Info("session removed", "session_id", sessionID)
	return true
}

// Count returns the number of live records.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Stats returns registry occupancy and limits.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{
		ActiveSessions: len(r.sessions),
		MaxSessions:    r.maxSessions,
		TimeoutMinutes: int(r.timeout.Minutes()),
	}
}

// evictOldest removes the ceil(10% of max) records with the smallest
// lastUsed. Caller must hold the write lock.
func (r *Registry) evictOldest() {
	evictCount := (r.maxSessions + 9) / 10

	all := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		all = append(all, sess)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].LastUsed.Before(all[j].LastUsed)
	})

	if evictCount > len(all) {
		evictCount = len(all)
	}
	for _, sess := range all[:evictCount] {
		delete(r.sessions, sess.ID)
	}

	r.logger.Info("evicted sessions at capacity",
		"evicted", evictCount,
		"max_sessions", r.maxSessions,
	)
}

// sweep periodically removes expired records so idle sessions that are
// never looked up again still get reclaimed.
func (r *Registry) sweep() {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweepExpired()
		case <-r.done:
			return
		}
	}
}

func (r *Registry) sweepExpired() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, sess := range r.sessions {
		if now.Sub(sess.LastUsed) > r.timeout {
			delete(r.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		r.logger.Info("swept expired sessions", "removed", removed, "active", len(r.sessions))
	}
}

// Close stops the background sweep. Safe to call multiple times.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.closed {
		r.closed = true
		close(r.done)
	}
}
