package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/quickchess/server/internal/domain"
)

// MemoryCache implements SessionCache in process memory. It is used for
// single-node runs and tests; it round-trips sessions through JSON so
// callers never share pointers with the cache, matching Redis semantics.
type MemoryCache struct {
	mu           sync.RWMutex
	entries      map[string]memoryEntry
	completedTTL time.Duration
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewMemory creates an in-memory session cache.
func NewMemory(completedTTL time.Duration) *MemoryCache {
	return &MemoryCache{
		entries:      make(map[string]memoryEntry),
		completedTTL: completedTTL,
	}
}

// Get returns the cached session, or (nil, nil) when absent or expired.
func (c *MemoryCache) Get(ctx context.Context, sessionID string) (*domain.GameSession, error) {
	c.mu.RLock()
	entry, ok := c.entries[sessionID]
	c.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, sessionID)
		c.mu.Unlock()
		return nil, nil
	}

	var session domain.GameSession
	if err := json.Unmarshal(entry.data, &session); err != nil {
		return nil, fmt.Errorf("decode cached session %s: %w", sessionID, err)
	}
	return &session, nil
}

// Set stores the session. Completed sessions get the eviction TTL.
func (c *MemoryCache) Set(ctx context.Context, sessionID string, session *domain.GameSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sessionID, err)
	}

	var expiresAt time.Time
	if session.Lifecycle == domain.LifecycleCompleted && c.completedTTL > 0 {
		expiresAt = time.Now().Add(c.completedTTL)
	}

	c.mu.Lock()
	c.entries[sessionID] = memoryEntry{data: data, expiresAt: expiresAt}
	c.mu.Unlock()
	return nil
}

// Delete removes the cached session.
func (c *MemoryCache) Delete(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	delete(c.entries, sessionID)
	c.mu.Unlock()
	return nil
}
