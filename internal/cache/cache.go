// Package cache provides the fast mutable session tier.
//
// The cache is the read path for current session state. Entries for
// completed sessions carry a TTL so the cache self-evicts once the durable
// record is authoritative.
package cache

import (
	"context"

	"github.com/quickchess/server/internal/domain"
)

// SessionCache is the fast key-value tier keyed by session ID.
type SessionCache interface {
	// Get returns the cached session, or (nil, nil) when absent.
	Get(ctx context.Context, sessionID string) (*domain.GameSession, error)

	// Set stores the full session snapshot. Completed sessions are stored
	// with the configured eviction TTL; live sessions never expire.
	Set(ctx context.Context, sessionID string, session *domain.GameSession) error

	// Delete removes the cached session. Removing an absent entry is not
	// an error.
	Delete(ctx context.Context, sessionID string) error
}
