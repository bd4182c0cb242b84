// Package store provides the durable session record tier.
package store

import (
	"context"
	"time"

	"github.com/quickchess/server/internal/domain"
)

// Record is the durable mirror of a session: identity, seating, lifecycle,
// and final outcome. It survives process restarts and cache eviction; the
// move log lives only in the cache tier.
type Record struct {
	SessionID       string
	FirstPlayer     string
	SecondPlayer    string
	Lifecycle       domain.Lifecycle
	InitialPosition string
	FinalPosition   string
	Outcome         domain.Outcome
	Reason          domain.Reason
	CreatedAt       time.Time
	CompletedAt     *time.Time
}

// RecordUpdate is a partial update; nil fields are left untouched.
type RecordUpdate struct {
	FirstPlayer   *string
	SecondPlayer  *string
	Lifecycle     *domain.Lifecycle
	FinalPosition *string
	Outcome       *domain.Outcome
	Reason        *domain.Reason
	CompletedAt   *time.Time
}

// Repository defines the durable store contract.
type Repository interface {
	// CreateRecord persists a new session record.
	CreateRecord(ctx context.Context, record *Record) error

	// UpdateRecord applies a partial update to an existing record.
	UpdateRecord(ctx context.Context, sessionID string, update RecordUpdate) error

	// FindRecord returns the record, or (nil, nil) when absent.
	FindRecord(ctx context.Context, sessionID string) (*Record, error)

	// Ping verifies store connectivity.
	Ping(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}

// TerminalSnapshot reconstructs a read-only view of a completed session
// from its durable record, for sessions already evicted from the cache.
// The move log is not durable, so the snapshot carries only the final
// position.
func (r *Record) TerminalSnapshot() *domain.Snapshot {
	position := r.FinalPosition
	if position == "" {
		position = r.InitialPosition
	}

	var terminal *domain.TerminalStatus
	if r.Outcome != "" {
		terminal = &domain.TerminalStatus{Outcome: r.Outcome, Reason: r.Reason}
	}

	var completedAt *time.Time
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		completedAt = &t
	}

	return &domain.Snapshot{
		SessionID: r.SessionID,
		Position:  position,
		MoveLog:   []domain.Move{},
		Seats: map[domain.Seat]string{
			domain.SeatFirst:  r.FirstPlayer,
			domain.SeatSecond: r.SecondPlayer,
		},
		Lifecycle:      r.Lifecycle,
		TerminalStatus: terminal,
		CreatedAt:      r.CreatedAt,
		CompletedAt:    completedAt,
	}
}
