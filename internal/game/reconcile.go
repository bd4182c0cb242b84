package game

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/quickchess/server/internal/shared"
	"github.com/quickchess/server/internal/store"
)

// Reconciler retries durable finalizations that failed while the cache had
// already advanced past the durable record. Each queued update is the exact
// update captured at completion time, so retries can never write a final
// position other than the one the cache held when the session completed.
type Reconciler struct {
	repo     store.Repository
	interval time.Duration

	mu      sync.Mutex
	pending map[string]pendingFinalization
}

type pendingFinalization struct {
	update   store.RecordUpdate
	attempts int
}

// NewReconciler creates a reconciler that flushes pending finalizations at
// the given interval.
func NewReconciler(repo store.Repository, interval time.Duration) *Reconciler {
	return &Reconciler{
		repo:     repo,
		interval: interval,
		pending:  make(map[string]pendingFinalization),
	}
}

// Enqueue schedules a failed finalization for retry. A session is enqueued
// at most once; the first captured update wins since terminal state is
// immutable.
func (r *Reconciler) Enqueue(sessionID string, update store.RecordUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.pending[sessionID]; exists {
		return
	}
	r.pending[sessionID] = pendingFinalization{update: update}
	slog.Warn("Session flagged for durable reconciliation", "session_id", sessionID)
}

// PendingCount returns the number of sessions awaiting reconciliation.
func (r *Reconciler) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Start runs a background goroutine that periodically retries pending
// finalizations until the context is cancelled.
func (r *Reconciler) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Reconciler started", "interval", r.interval)

		for {
			select {
			case <-ticker.C:
				r.Flush(ctx)
			case <-ctx.Done():
				slog.Info("Reconciler shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// Flush attempts every pending finalization once. Successful writes are
// removed from the queue; failures stay queued for the next pass.
func (r *Reconciler) Flush(ctx context.Context) {
	r.mu.Lock()
	batch := make(map[string]pendingFinalization, len(r.pending))
	for id, p := range r.pending {
		batch[id] = p
	}
	r.mu.Unlock()

	for sessionID, p := range batch {
		err := r.repo.UpdateRecord(ctx, sessionID, p.update)
		if err == nil {
			r.mu.Lock()
			delete(r.pending, sessionID)
			r.mu.Unlock()
			slog.Info("Reconciled durable record", "session_id", sessionID, "attempts", p.attempts+1)
			continue
		}

		r.mu.Lock()
		p.attempts++
		r.pending[sessionID] = p
		r.mu.Unlock()

		if shared.IsSQLiteConflictError(err) {
			slog.Debug("Reconciliation hit a locked database, will retry",
				"session_id", sessionID, "attempt", p.attempts)
		} else {
			slog.Warn("Reconciliation attempt failed",
				"session_id", sessionID, "attempt", p.attempts, "error", err)
		}
	}
}
