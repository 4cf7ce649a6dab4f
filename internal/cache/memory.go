// Package cache provides the tiered caches the quote pipeline relies on: a
// process-local TTL map plus a shared Redis tier that any replica can serve
// from.
package cache

import (
	"sync"
	"time"
)

// StaleTTL is how long a successful source fetch stays usable as a stale
// fallback after its fresh TTL lapses.
const StaleTTL = 6 * time.Hour

// StaleKey derives the stale-tier variant of a fresh cache key.
func StaleKey(key string) string { return key + ":stale" }

type memoryEntry struct {
	value     any
	expiresAt time.Time
}

// Memory is an in-process key/value cache with per-entry expiry. Entries
// expire lazily: a read past expiry is treated as absent and evicted on
// access. There is no background sweep.
type Memory struct {
	mu    sync.RWMutex
	items map[string]memoryEntry
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		items: make(map[string]memoryEntry),
		now:   time.Now,
	}
}

// Get returns the live value for key, or (nil, false) if absent or expired.
func (m *Memory) Get(key string) (any, bool) {
	m.mu.RLock()
	entry, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if m.now().After(entry.expiresAt) {
		m.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have renewed it.
		if cur, ok := m.items[key]; ok && m.now().After(cur.expiresAt) {
			delete(m.items, key)
		}
		m.mu.Unlock()
		return nil, false
	}
	return entry.value, true
}

// Set stores value under key for ttl.
func (m *Memory) Set(key string, value any, ttl time.Duration) {
	m.mu.Lock()
	m.items[key] = memoryEntry{value: value, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
}
