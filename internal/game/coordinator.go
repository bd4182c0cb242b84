// Package game implements the session coordinator: the sole authority for
// session state transitions across the cache and durable tiers.
package game

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quickchess/server/internal/cache"
	"github.com/quickchess/server/internal/domain"
	"github.com/quickchess/server/internal/lock"
	"github.com/quickchess/server/internal/rules"
	"github.com/quickchess/server/internal/store"
)

// repetitionLimit is the number of occurrences of the same position that
// ends the game as a draw by repetition.
const repetitionLimit = 3

// Broadcaster pushes accepted state transitions to a session's live
// observers.
type Broadcaster interface {
	Broadcast(ctx context.Context, sessionID string, snapshot *domain.Snapshot)
}

// Coordinator orchestrates session creation, seating, move application, and
// terminal finalization. All mutating operations on an existing session run
// under per-session exclusion; storage calls and the observer broadcast
// complete before the lock is released, so broadcasts for one session are
// delivered in move order.
type Coordinator struct {
	cache       cache.SessionCache
	repo        store.Repository
	engine      rules.Engine
	locks       lock.Locker
	reconciler  *Reconciler
	broadcaster Broadcaster
}

// NewCoordinator wires the coordinator to its collaborators. reconciler may
// be nil, in which case failed durable finalizations are only logged.
func NewCoordinator(sessionCache cache.SessionCache, repo store.Repository, engine rules.Engine, locks lock.Locker, reconciler *Reconciler) *Coordinator {
	return &Coordinator{
		cache:      sessionCache,
		repo:       repo,
		engine:     engine,
		locks:      locks,
		reconciler: reconciler,
	}
}

// SetBroadcaster attaches the observer fan-out. Set once during wiring,
// before the coordinator serves requests; the hub needs the coordinator
// first, so this cannot be a constructor argument.
func (c *Coordinator) SetBroadcaster(b Broadcaster) {
	c.broadcaster = b
}

func (c *Coordinator) broadcast(ctx context.Context, sessionID string, snapshot *domain.Snapshot) {
	if c.broadcaster != nil {
		c.broadcaster.Broadcast(ctx, sessionID, snapshot)
	}
}

// CreateSession creates a pending session with the creator in the requested
// seat. The session is written to the cache first and then to the durable
// store; a durable failure rolls the cache entry back so no session is ever
// visible in the fast tier only.
func (c *Coordinator) CreateSession(ctx context.Context, creator string, requestedSeat domain.Seat) (string, error) {
	if creator == "" {
		return "", fmt.Errorf("creator identity is required")
	}
	if !requestedSeat.Valid() {
		return "", fmt.Errorf("invalid seat %q", requestedSeat)
	}

	session := &domain.GameSession{
		SessionID: uuid.New().String(),
		Position:  rules.StartingPosition,
		MoveLog:   []domain.Move{},
		Seats: map[domain.Seat]string{
			domain.SeatFirst:  "",
			domain.SeatSecond: "",
		},
		TurnSeat:  domain.SeatFirst,
		Lifecycle: domain.LifecyclePending,
		CreatedAt: time.Now(),
	}
	session.Seats[requestedSeat] = creator

	if err := c.cache.Set(ctx, session.SessionID, session); err != nil {
		return "", fmt.Errorf("%w: cache session: %v", ErrPersistence, err)
	}

	record := &store.Record{
		SessionID:       session.SessionID,
		FirstPlayer:     session.Seats[domain.SeatFirst],
		SecondPlayer:    session.Seats[domain.SeatSecond],
		Lifecycle:       session.Lifecycle,
		InitialPosition: session.Position,
		CreatedAt:       session.CreatedAt,
	}
	if err := c.repo.CreateRecord(ctx, record); err != nil {
		if delErr := c.cache.Delete(ctx, session.SessionID); delErr != nil {
			slog.Error("Failed to roll back cache entry after durable create failure",
				"session_id", session.SessionID, "error", delErr)
		}
		return "", fmt.Errorf("%w: create durable record: %v", ErrPersistence, err)
	}

	slog.Info("Session created", "session_id", session.SessionID, "seat", requestedSeat)
	return session.SessionID, nil
}

// JoinSession seats the joiner in the open seat and activates the session
// once both seats are filled. Runs under per-session exclusion.
func (c *Coordinator) JoinSession(ctx context.Context, sessionID, joiner string) (*domain.Snapshot, error) {
	release, err := c.locks.Acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	session, err := c.loadCached(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		// Completed sessions evicted from cache still have a durable
		// record; they exist but reject joins.
		record, findErr := c.repo.FindRecord(ctx, sessionID)
		if findErr != nil {
			return nil, fmt.Errorf("%w: find durable record: %v", ErrPersistence, findErr)
		}
		if record != nil {
			return nil, fmt.Errorf("%w: session %s is %s", ErrGameNotActive, sessionID, record.Lifecycle)
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	openSeat, ok := session.OpenSeat()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionFull, sessionID)
	}
	if _, seated := session.SeatOf(joiner); seated {
		return nil, fmt.Errorf("%w: %s in session %s", ErrDuplicateSeat, joiner, sessionID)
	}

	prev := session.Snapshot()

	session.Seats[openSeat] = joiner
	if session.BothSeatsFilled() {
		session.Lifecycle = domain.LifecycleActive
	}

	if err := c.cache.Set(ctx, sessionID, session); err != nil {
		return nil, fmt.Errorf("%w: cache session: %v", ErrPersistence, err)
	}

	first := session.Seats[domain.SeatFirst]
	second := session.Seats[domain.SeatSecond]
	lifecycle := session.Lifecycle
	update := store.RecordUpdate{
		FirstPlayer:  &first,
		SecondPlayer: &second,
		Lifecycle:    &lifecycle,
	}
	if err := c.repo.UpdateRecord(ctx, sessionID, update); err != nil {
		// The join is not reported successful until both tiers reflect
		// it; restore the cache entry while still holding the lock.
		restored := sessionFromSnapshot(prev)
		if setErr := c.cache.Set(ctx, sessionID, restored); setErr != nil {
			slog.Error("Failed to restore cache entry after durable update failure",
				"session_id", sessionID, "error", setErr)
		}
		return nil, fmt.Errorf("%w: persist seat assignment: %v", ErrPersistence, err)
	}

	slog.Info("Player joined session",
		"session_id", sessionID, "seat", openSeat, "lifecycle", session.Lifecycle)

	snapshot := session.Snapshot()
	c.broadcast(ctx, sessionID, snapshot)
	return snapshot, nil
}

// ApplyMove validates and applies a move for the mover, detects terminal
// positions, and persists the result. Runs under per-session exclusion; no
// session state changes unless the rules engine accepts the move.
func (c *Coordinator) ApplyMove(ctx context.Context, sessionID, mover, from, to, promotion string) (*domain.Snapshot, error) {
	release, err := c.locks.Acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	session, err := c.loadCached(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	if session.Lifecycle != domain.LifecycleActive {
		return nil, fmt.Errorf("%w: session %s is %s", ErrGameNotActive, sessionID, session.Lifecycle)
	}

	seat, seated := session.SeatOf(mover)
	if !seated {
		return nil, fmt.Errorf("%w: %s in session %s", ErrNotAParticipant, mover, sessionID)
	}
	if seat != session.TurnSeat {
		return nil, fmt.Errorf("%w: %s seat is %s, turn is %s", ErrNotYourTurn, mover, seat, session.TurnSeat)
	}

	result, err := c.engine.ApplyMove(session.Position, from, to, promotion)
	if err != nil {
		return nil, err
	}

	session.MoveLog = append(session.MoveLog, domain.Move{
		From:      from,
		To:        to,
		Promotion: promotion,
		Position:  result.Position,
	})
	session.Position = result.Position
	session.TurnSeat = session.TurnSeat.Other()

	status, err := c.engine.TerminalStatus(result.Position)
	if err != nil {
		return nil, fmt.Errorf("classify position: %w", err)
	}
	if terminal := terminalStatusFor(status, seat, c.repetitions(session)); terminal != nil {
		now := time.Now()
		session.Lifecycle = domain.LifecycleCompleted
		session.TerminalStatus = terminal
		session.CompletedAt = &now
	}

	if err := c.cache.Set(ctx, sessionID, session); err != nil {
		return nil, fmt.Errorf("%w: cache session: %v", ErrPersistence, err)
	}

	if session.Lifecycle == domain.LifecycleCompleted {
		c.finalize(ctx, session)
	}

	snapshot := session.Snapshot()
	c.broadcast(ctx, sessionID, snapshot)
	return snapshot, nil
}

// Resign completes the session in favor of the resigner's opponent. Runs
// under per-session exclusion.
func (c *Coordinator) Resign(ctx context.Context, sessionID, identity string) (*domain.Snapshot, error) {
	release, err := c.locks.Acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	session, err := c.loadCached(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if session.Lifecycle != domain.LifecycleActive {
		return nil, fmt.Errorf("%w: session %s is %s", ErrGameNotActive, sessionID, session.Lifecycle)
	}

	seat, seated := session.SeatOf(identity)
	if !seated {
		return nil, fmt.Errorf("%w: %s in session %s", ErrNotAParticipant, identity, sessionID)
	}

	now := time.Now()
	session.Lifecycle = domain.LifecycleCompleted
	session.TerminalStatus = &domain.TerminalStatus{
		Outcome: outcomeForWinner(seat.Other()),
		Reason:  domain.ReasonResignation,
	}
	session.CompletedAt = &now

	if err := c.cache.Set(ctx, sessionID, session); err != nil {
		return nil, fmt.Errorf("%w: cache session: %v", ErrPersistence, err)
	}

	c.finalize(ctx, session)

	slog.Info("Player resigned", "session_id", sessionID, "seat", seat)

	snapshot := session.Snapshot()
	c.broadcast(ctx, sessionID, snapshot)
	return snapshot, nil
}

// GetSessionState returns the current snapshot: the cache view when
// present, otherwise a terminal-only snapshot reconstructed from the
// durable record.
func (c *Coordinator) GetSessionState(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	session, err := c.loadCached(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session != nil {
		return session.Snapshot(), nil
	}

	record, err := c.repo.FindRecord(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: find durable record: %v", ErrPersistence, err)
	}
	if record == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	return record.TerminalSnapshot(), nil
}

// LegalMoves lists legal moves for the session's current position.
func (c *Coordinator) LegalMoves(ctx context.Context, sessionID string) ([]string, error) {
	session, err := c.loadCached(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	return c.engine.LegalMoves(session.Position)
}

func (c *Coordinator) loadCached(ctx context.Context, sessionID string) (*domain.GameSession, error) {
	session, err := c.cache.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: read session cache: %v", ErrPersistence, err)
	}
	return session, nil
}

// finalize writes the terminal outcome to the durable store. The move was
// legitimately applied in the cache tier, so a durable failure here does not
// fail the call; the exact update is handed to the reconciler for retry so
// the durable record can never complete with a different final position
// than the cache held.
func (c *Coordinator) finalize(ctx context.Context, session *domain.GameSession) {
	lifecycle := session.Lifecycle
	finalPosition := session.Position
	outcome := session.TerminalStatus.Outcome
	reason := session.TerminalStatus.Reason
	update := store.RecordUpdate{
		Lifecycle:     &lifecycle,
		FinalPosition: &finalPosition,
		Outcome:       &outcome,
		Reason:        &reason,
		CompletedAt:   session.CompletedAt,
	}

	if err := c.repo.UpdateRecord(ctx, session.SessionID, update); err != nil {
		slog.Error("Failed to persist terminal outcome, scheduling reconciliation",
			"session_id", session.SessionID, "error", err)
		if c.reconciler != nil {
			c.reconciler.Enqueue(session.SessionID, update)
		}
		return
	}

	slog.Info("Session completed",
		"session_id", session.SessionID,
		"outcome", outcome,
		"reason", reason)
}

// repetitions counts how often the current position has occurred, using the
// normalized position identity. The standard starting position counts as
// the first occurrence of itself.
func (c *Coordinator) repetitions(session *domain.GameSession) int {
	current := rules.NormalizePosition(session.Position)
	count := 0
	if rules.NormalizePosition(rules.StartingPosition) == current {
		count++
	}
	for _, move := range session.MoveLog {
		if rules.NormalizePosition(move.Position) == current {
			count++
		}
	}
	return count
}

// terminalStatusFor derives the terminal status from the engine
// classification. Checkmate credits the seat that delivered it; every draw
// method resolves to a draw. Returns nil for non-terminal positions.
func terminalStatusFor(status rules.Status, moverSeat domain.Seat, repetitions int) *domain.TerminalStatus {
	switch {
	case status.IsCheckmate:
		return &domain.TerminalStatus{
			Outcome: outcomeForWinner(moverSeat),
			Reason:  domain.ReasonCheckmate,
		}
	case status.IsStalemate:
		return &domain.TerminalStatus{Outcome: domain.OutcomeDraw, Reason: domain.ReasonStalemate}
	case status.IsOver && status.IsDraw:
		reason := domain.ReasonInsufficientMaterial
		if status.Method == rules.MethodFiftyMove {
			reason = domain.ReasonFiftyMove
		}
		return &domain.TerminalStatus{Outcome: domain.OutcomeDraw, Reason: reason}
	case repetitions >= repetitionLimit:
		return &domain.TerminalStatus{Outcome: domain.OutcomeDraw, Reason: domain.ReasonRepetition}
	default:
		return nil
	}
}

func outcomeForWinner(seat domain.Seat) domain.Outcome {
	if seat == domain.SeatFirst {
		return domain.OutcomeFirstWins
	}
	return domain.OutcomeSecondWins
}

// sessionFromSnapshot rebuilds a mutable session from an immutable
// snapshot, used to restore cache state on a failed durable write.
func sessionFromSnapshot(snap *domain.Snapshot) *domain.GameSession {
	return &domain.GameSession{
		SessionID:      snap.SessionID,
		Position:       snap.Position,
		MoveLog:        snap.MoveLog,
		Seats:          snap.Seats,
		TurnSeat:       snap.TurnSeat,
		Lifecycle:      snap.Lifecycle,
		TerminalStatus: snap.TerminalStatus,
		CreatedAt:      snap.CreatedAt,
		CompletedAt:    snap.CompletedAt,
	}
}
