// Package lock provides per-session mutual exclusion.
//
// Every mutating coordinator operation runs inside a session-scoped
// exclusive section so two concurrent writers can never both read the same
// cached state and clobber each other's update.
package lock

import (
	"context"
	"errors"
)

// ErrSessionBusy is returned when the per-session lock cannot be acquired
// within the configured timeout. Callers may retry.
var ErrSessionBusy = errors.New("session busy")

// Locker acquires session-scoped exclusive sections. Acquire blocks up to
// the implementation's timeout, then fails with ErrSessionBusy. The
// returned release function must be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, sessionID string) (release func(), err error)
}
