// ABOUTME: Tests for the session registry covering lifecycle and bounds.
// ABOUTME: Exercises lazy expiry, background sweep, and capacity eviction.

package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRaw() map[string]string {
	return map[string]string{
		KeyAPIURL:      "https://gitlab.example.com/api/v4",
		KeyAccessToken: "glpat-test",
	}
}

func TestRegistry_CreateAndGet(t *testing.T) {
	r := NewRegistry(RegistryConfig{})
	defer r.Close()

	created, err := r.Create("sess-1", validRaw())
	require.NoError(t, err)
	assert.Equal(t, "sess-1", created.ID)
	assert.False(t, created.LastUsed.Before(created.CreatedAt))

	got, ok := r.Get("sess-1")
	require.True(t, ok)
	assert.Equal(t, "https://gitlab.example.com/api/v4", got.Config.APIURL)
	assert.False(t, got.LastUsed.Before(created.CreatedAt))
}

func TestRegistry_Get_Unknown(t *testing.T) {
	r := NewRegistry(RegistryConfig{})
	defer r.Close()

	_, ok := r.Get("nope")
	assert.False(t, ok)
}

func TestRegistry_Get_RefreshesLastUsed(t *testing.T) {
	r := NewRegistry(RegistryConfig{})
	defer r.Close()

	_, err := r.Create("sess-1", validRaw())
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	first, ok := r.Get("sess-1")
	require.True(t, ok)

	time.Sleep(10 * time.Millisecond)
	second, ok := r.Get("sess-1")
	require.True(t, ok)

	assert.True(t, second.LastUsed.After(first.LastUsed), "each lookup must refresh lastUsed")
}

func TestRegistry_Create_InvalidConfigLeavesNoState(t *testing.T) {
	r := NewRegistry(RegistryConfig{})
	defer r.Close()

	_, err := r.Create("sess-1", map[string]string{KeyAPIURL: "https://gitlab.com"})
	require.Error(t, err)

	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
	assert.Equal(t, 0, r.Count())
}

func TestRegistry_Create_OverwritesExisting(t *testing.T) {
	r := NewRegistry(RegistryConfig{})
	defer r.Close()

	raw := validRaw()
	_, err := r.Create("sess-1", raw)
	require.NoError(t, err)

	raw[KeyReadOnly] = "true"
	_, err = r.Create("sess-1", raw)
	require.NoError(t, err)

	assert.Equal(t, 1, r.Count())
	got, ok := r.Get("sess-1")
	require.True(t, ok)
	assert.True(t, got.Config.ReadOnly)
}

func TestRegistry_Get_ExpiresIdleSession(t *testing.T) {
	r := NewRegistry(RegistryConfig{Timeout: 30 * time.Millisecond, SweepInterval: time.Hour})
	defer r.Close()

	_, err := r.Create("sess-1", validRaw())
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	_, ok := r.Get("sess-1")
	assert.False(t, ok, "expired session must not be returned")
	assert.Equal(t, 0, r.Count(), "expired session must be deleted on lookup")
}

func TestRegistry_Get_WithinTimeoutKeepsSessionAlive(t *testing.T) {
	r := NewRegistry(RegistryConfig{Timeout: 60 * time.Millisecond, SweepInterval: time.Hour})
	defer r.Close()

	_, err := r.Create("sess-1", validRaw())
	require.NoError(t, err)

	// Keep touching the session at intervals shorter than the timeout.
	for i := 0; i < 4; i++ {
		time.Sleep(30 * time.Millisecond)
		_, ok := r.Get("sess-1")
		require.True(t, ok, "touch %d", i)
	}
}

func TestRegistry_SweepRemovesExpiredSessions(t *testing.T) {
	r := NewRegistry(RegistryConfig{Timeout: 30 * time.Millisecond, SweepInterval: 20 * time.Millisecond})
	defer r.Close()

	for i := 0; i < 3; i++ {
		_, err := r.Create(fmt.Sprintf("sess-%d", i), validRaw())
		require.NoError(t, err)
	}
	require.Equal(t, 3, r.Count())

	// No lookups at all; the sweep alone must reclaim the records.
	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, 0, r.Count())
}

func TestRegistry_Create_AtCapacityEvictsOldest(t *testing.T) {
	r := NewRegistry(RegistryConfig{MaxSessions: 5, Timeout: time.Hour, SweepInterval: time.Hour})
	defer r.Close()

	for i := 1; i <= 5; i++ {
		_, err := r.Create(fmt.Sprintf("sess-%d", i), validRaw())
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	_, err := r.Create("sess-6", validRaw())
	require.NoError(t, err)

	assert.Equal(t, 5, r.Count())
	_, ok := r.Get("sess-1")
	assert.False(t, ok, "least recently used session should be evicted")
	for i := 2; i <= 6; i++ {
		_, ok := r.Get(fmt.Sprintf("sess-%d", i))
		assert.True(t, ok, "sess-%d should survive eviction", i)
	}
}

func TestRegistry_EvictionPrefersLeastRecentlyUsed(t *testing.T) {
	r := NewRegistry(RegistryConfig{MaxSessions: 5, Timeout: time.Hour, SweepInterval: time.Hour})
	defer r.Close()

	for i := 1; i <= 5; i++ {
		_, err := r.Create(fmt.Sprintf("sess-%d", i), validRaw())
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	// Touch sess-1 so sess-2 becomes the eviction candidate.
	_, ok := r.Get("sess-1")
	require.True(t, ok)
	time.Sleep(5 * time.Millisecond)

	_, err := r.Create("sess-6", validRaw())
	require.NoError(t, err)

	_, ok = r.Get("sess-1")
	assert.True(t, ok, "recently used session must survive")
	_, ok = r.Get("sess-2")
	assert.False(t, ok, "least recently used session must be evicted")
}

func TestRegistry_EvictionCountIsTenPercentCeiling(t *testing.T) {
	r := NewRegistry(RegistryConfig{MaxSessions: 20, Timeout: time.Hour, SweepInterval: time.Hour})
	defer r.Close()

	for i := 1; i <= 20; i++ {
		_, err := r.Create(fmt.Sprintf("sess-%d", i), validRaw())
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	// ceil(0.1 * 20) = 2 evictions, then the new record is inserted.
	_, err := r.Create("sess-21", validRaw())
	require.NoError(t, err)

	assert.Equal(t, 19, r.Count())
	for _, id := range []string{"sess-1", "sess-2"} {
		_, ok := r.Get(id)
		assert.False(t, ok, "%s should be evicted", id)
	}
	_, ok := r.Get("sess-3")
	assert.True(t, ok)
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry(RegistryConfig{})
	defer r.Close()

	_, err := r.Create("sess-1", validRaw())
	require.NoError(t, err)

	assert.True(t, r.Remove("sess-1"))
	assert.False(t, r.Remove("sess-1"))
	assert.Equal(t, 0, r.Count())
}

func TestRegistry_Stats(t *testing.T) {
	r := NewRegistry(RegistryConfig{MaxSessions: 50, Timeout: 90 * time.Minute})
	defer r.Close()

	_, err := r.Create("sess-1", validRaw())
	require.NoError(t, err)

	stats := r.Stats()
	assert.Equal(t, 1, stats.ActiveSessions)
	assert.Equal(t, 50, stats.MaxSessions)
	assert.Equal(t, 90, stats.TimeoutMinutes)
}

func TestRegistry_Defaults(t *testing.T) {
	r := NewRegistry(RegistryConfig{})
	defer r.Close()

	stats := r.Stats()
	assert.Equal(t, DefaultMaxSessions, stats.MaxSessions)
	assert.Equal(t, 60, stats.TimeoutMinutes)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry(RegistryConfig{})
	defer r.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				id := fmt.Sprintf("sess-%d-%d", n, j)
				_, err := r.Create(id, validRaw())
				assert.NoError(t, err)
				_, ok := r.Get(id)
				assert.True(t, ok)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 200, r.Count())
}

func TestRegistry_Close_Idempotent(t *testing.T) {
	r := NewRegistry(RegistryConfig{})
	r.Close()
	r.Close()
}
