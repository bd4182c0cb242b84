package lock

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// KeyedMutex implements Locker with in-process mutexes keyed by session ID.
// Suitable when a single coordinator process serves each session.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*mutexEntry
	timeout time.Duration
}

type mutexEntry struct {
	sem  chan struct{}
	refs int
}

// NewKeyedMutex creates an in-process per-session locker. timeout bounds
// how long Acquire waits for a contended session.
func NewKeyedMutex(timeout time.Duration) *KeyedMutex {
	return &KeyedMutex{
		entries: make(map[string]*mutexEntry),
		timeout: timeout,
	}
}

// Acquire takes the exclusive section for a session ID.
func (k *KeyedMutex) Acquire(ctx context.Context, sessionID string) (func(), error) {
	k.mu.Lock()
	entry, ok := k.entries[sessionID]
	if !ok {
		entry = &mutexEntry{sem: make(chan struct{}, 1)}
		k.entries[sessionID] = entry
	}
	entry.refs++
	k.mu.Unlock()

	timer := time.NewTimer(k.timeout)
	defer timer.Stop()

	select {
	case entry.sem <- struct{}{}:
		var once sync.Once
		release := func() {
			once.Do(func() {
				<-entry.sem
				k.unref(sessionID, entry)
			})
		}
		return release, nil
	case <-timer.C:
		k.unref(sessionID, entry)
		return nil, fmt.Errorf("%w: lock wait exceeded %s for session %s", ErrSessionBusy, k.timeout, sessionID)
	case <-ctx.Done():
		k.unref(sessionID, entry)
		return nil, ctx.Err()
	}
}

// unref drops one reference and removes the entry once unused, keeping the
// map from growing with every session ever seen.
func (k *KeyedMutex) unref(sessionID string, entry *mutexEntry) {
	k.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(k.entries, sessionID)
	}
	k.mu.Unlock()
}
