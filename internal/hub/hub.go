// Package hub maintains per-session observer sets and fans out session
// snapshots to connected clients.
//
// Delivery for one session is serialized: the coordinator invokes Broadcast
// inside the session's exclusive section, and the hub holds the session's
// delivery lock until every observer has been written to. Observers
// therefore see snapshots in move order, and a registration's initial push
// can never land after a newer broadcast.
package hub

import (
	"context"
	"log/slog"
	"sync"

	"github.com/quickchess/server/internal/domain"
)

// Frame is one outbound message on the push channel.
type Frame struct {
	Type  string           `json:"type"`
	State *domain.Snapshot `json:"state,omitempty"`
	Error *ErrorPayload    `json:"error,omitempty"`
}

// Frame types on the push channel.
const (
	FrameSessionState = "session_state"
	FrameSessionError = "session_error"
)

// ErrorPayload carries a structured error to a single observer.
type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Sink is one observer connection. Send failures affect only that observer.
type Sink interface {
	Send(ctx context.Context, frame *Frame) error
}

// Coordinator is the subset of the session coordinator the hub routes
// inbound signals to.
type Coordinator interface {
	JoinSession(ctx context.Context, sessionID, joiner string) (*domain.Snapshot, error)
	ApplyMove(ctx context.Context, sessionID, mover, from, to, promotion string) (*domain.Snapshot, error)
	Resign(ctx context.Context, sessionID, identity string) (*domain.Snapshot, error)
	GetSessionState(ctx context.Context, sessionID string) (*domain.Snapshot, error)
}

// observerSet is one session's observers plus its delivery lock. gone marks
// a set that has been removed from the hub; holders of a stale pointer must
// re-fetch.
type observerSet struct {
	mu    sync.Mutex
	gone  bool
	sinks map[Sink]struct{}
}

// Hub maps session IDs to live observer sets.
type Hub struct {
	coordinator Coordinator

	mu       sync.RWMutex
	sessions map[string]*observerSet
}

// New creates a hub routing to the given coordinator.
func New(coordinator Coordinator) *Hub {
	return &Hub{
		coordinator: coordinator,
		sessions:    make(map[string]*observerSet),
	}
}

func (h *Hub) entryFor(sessionID string) *observerSet {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.sessions[sessionID]
	if !ok {
		set = &observerSet{sinks: make(map[Sink]struct{})}
		h.sessions[sessionID] = set
	}
	return set
}

func (h *Hub) lookup(sessionID string) *observerSet {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessions[sessionID]
}

// drop removes sink (when non-nil) from the session's set and deletes the
// set once empty.
func (h *Hub) drop(sessionID string, sink Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.sessions[sessionID]
	if !ok {
		return
	}
	set.mu.Lock()
	if sink != nil {
		delete(set.sinks, sink)
	}
	if len(set.sinks) == 0 {
		set.gone = true
		delete(h.sessions, sessionID)
	}
	set.mu.Unlock()
}

// Register adds an observer to a session's set and immediately pushes the
// current snapshot so late joiners see current state without waiting for
// the next move. The snapshot is read and pushed under the session's
// delivery lock: an in-flight broadcast completes first, and any broadcast
// arriving afterwards carries state at least as new as the initial push.
func (h *Hub) Register(ctx context.Context, sessionID string, sink Sink) error {
	for {
		set := h.entryFor(sessionID)
		set.mu.Lock()
		if set.gone {
			set.mu.Unlock()
			continue
		}

		snapshot, err := h.coordinator.GetSessionState(ctx, sessionID)
		if err != nil {
			set.mu.Unlock()
			h.drop(sessionID, nil)
			return err
		}

		set.sinks[sink] = struct{}{}
		if sendErr := sink.Send(ctx, &Frame{Type: FrameSessionState, State: snapshot}); sendErr != nil {
			slog.Debug("Initial snapshot push failed", "session_id", sessionID, "error", sendErr)
		}
		set.mu.Unlock()

		slog.Info("Observer registered", "session_id", sessionID)
		return nil
	}
}

// Remove deletes the observer from every session's set. Removing an
// unknown observer is a no-op.
func (h *Hub) Remove(sink Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sessionID, set := range h.sessions {
		set.mu.Lock()
		if _, ok := set.sinks[sink]; ok {
			delete(set.sinks, sink)
			if len(set.sinks) == 0 {
				set.gone = true
				delete(h.sessions, sessionID)
			}
			slog.Info("Observer removed", "session_id", sessionID)
		}
		set.mu.Unlock()
	}
}

// Broadcast delivers the snapshot to every observer of the session, holding
// the session's delivery lock for the whole pass. Delivery is best-effort
// per observer: a failed send is logged and never blocks delivery to the
// rest.
func (h *Hub) Broadcast(ctx context.Context, sessionID string, snapshot *domain.Snapshot) {
	set := h.lookup(sessionID)
	if set == nil {
		return
	}

	set.mu.Lock()
	defer set.mu.Unlock()
	if set.gone {
		return
	}

	frame := &Frame{Type: FrameSessionState, State: snapshot}
	for sink := range set.sinks {
		if err := sink.Send(ctx, frame); err != nil {
			slog.Warn("Snapshot delivery failed for one observer",
				"session_id", sessionID, "error", err)
		}
	}
}

// ObserverCount returns the number of observers registered for a session.
func (h *Hub) ObserverCount(sessionID string) int {
	set := h.lookup(sessionID)
	if set == nil {
		return 0
	}
	set.mu.Lock()
	defer set.mu.Unlock()
	return len(set.sinks)
}
