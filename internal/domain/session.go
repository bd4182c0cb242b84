// Package domain holds the core session model shared across storage tiers.
package domain

import (
	"time"
)

// Seat identifies one of the two playing positions in a session.
// The first seat always owns the opening move.
type Seat string

const (
	SeatFirst  Seat = "first"
	SeatSecond Seat = "second"
)

// Other returns the opposing seat.
func (s Seat) Other() Seat {
	if s == SeatFirst {
		return SeatSecond
	}
	return SeatFirst
}

// Valid reports whether the seat is one of the two known seats.
func (s Seat) Valid() bool {
	return s == SeatFirst || s == SeatSecond
}

// Lifecycle is the session state machine: pending until both seats are
// filled, active while moves may be applied, completed once terminal.
type Lifecycle string

const (
	LifecyclePending   Lifecycle = "pending"
	LifecycleActive    Lifecycle = "active"
	LifecycleCompleted Lifecycle = "completed"
)

// Outcome is the final result of a completed session.
type Outcome string

const (
	OutcomeFirstWins  Outcome = "first_wins"
	OutcomeSecondWins Outcome = "second_wins"
	OutcomeDraw       Outcome = "draw"
)

// Reason records how a completed session ended.
type Reason string

const (
	ReasonCheckmate            Reason = "checkmate"
	ReasonStalemate            Reason = "stalemate"
	ReasonInsufficientMaterial Reason = "insufficient_material"
	ReasonRepetition           Reason = "repetition"
	ReasonFiftyMove            Reason = "fifty_move"
	ReasonResignation          Reason = "resignation"
)

// TerminalStatus is non-nil only on completed sessions and immutable
// thereafter.
type TerminalStatus struct {
	Outcome Outcome `json:"outcome"`
	Reason  Reason  `json:"reason"`
}

// Move is one applied move in the log, with the position it produced.
type Move struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
	Position  string `json:"position"`
}

// GameSession is the full mutable session state held in the cache tier and
// mirrored partially in the durable record.
type GameSession struct {
	SessionID      string          `json:"session_id"`
	Position       string          `json:"position"`
	MoveLog        []Move          `json:"move_log"`
	Seats          map[Seat]string `json:"seats"`
	TurnSeat       Seat            `json:"turn_seat"`
	Lifecycle      Lifecycle       `json:"lifecycle"`
	TerminalStatus *TerminalStatus `json:"terminal_status,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}

// SeatOf returns the seat occupied by the given identity, or false if the
// identity holds no seat in this session.
func (g *GameSession) SeatOf(identity string) (Seat, bool) {
	for seat, id := range g.Seats {
		if id != "" && id == identity {
			return seat, true
		}
	}
	return "", false
}

// OpenSeat returns the unassigned seat, or false if both seats are filled.
func (g *GameSession) OpenSeat() (Seat, bool) {
	for _, seat := range []Seat{SeatFirst, SeatSecond} {
		if g.Seats[seat] == "" {
			return seat, true
		}
	}
	return "", false
}

// BothSeatsFilled reports whether both seats are occupied.
func (g *GameSession) BothSeatsFilled() bool {
	return g.Seats[SeatFirst] != "" && g.Seats[SeatSecond] != ""
}

// Snapshot is an immutable, fully populated view of a session at a point in
// time. It is what callers and observers receive; mutating it never affects
// the session it was taken from.
type Snapshot struct {
	SessionID      string          `json:"session_id"`
	Position       string          `json:"position"`
	MoveLog        []Move          `json:"move_log"`
	Seats          map[Seat]string `json:"seats"`
	TurnSeat       Seat            `json:"turn_seat"`
	Lifecycle      Lifecycle       `json:"lifecycle"`
	TerminalStatus *TerminalStatus `json:"terminal_status,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}

// Snapshot builds an immutable view by copying all mutable parts.
func (g *GameSession) Snapshot() *Snapshot {
	moves := make([]Move, len(g.MoveLog))
	copy(moves, g.MoveLog)

	seats := make(map[Seat]string, len(g.Seats))
	for seat, id := range g.Seats {
		seats[seat] = id
	}

	var terminal *TerminalStatus
	if g.TerminalStatus != nil {
		t := *g.TerminalStatus
		terminal = &t
	}

	var completedAt *time.Time
	if g.CompletedAt != nil {
		t := *g.CompletedAt
		completedAt = &t
	}

	return &Snapshot{
		SessionID:      g.SessionID,
		Position:       g.Position,
		MoveLog:        moves,
		Seats:          seats,
		TurnSeat:       g.TurnSeat,
		Lifecycle:      g.Lifecycle,
		TerminalStatus: terminal,
		CreatedAt:      g.CreatedAt,
		CompletedAt:    completedAt,
	}
}
