package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quickchess/server/internal/domain"
	"github.com/quickchess/server/internal/identity"
)

// Coordinator is the session coordinator surface the HTTP API depends on.
type Coordinator interface {
	CreateSession(ctx context.Context, creator string, requestedSeat domain.Seat) (string, error)
	JoinSession(ctx context.Context, sessionID, joiner string) (*domain.Snapshot, error)
	ApplyMove(ctx context.Context, sessionID, mover, from, to, promotion string) (*domain.Snapshot, error)
	Resign(ctx context.Context, sessionID, identity string) (*domain.Snapshot, error)
	GetSessionState(ctx context.Context, sessionID string) (*domain.Snapshot, error)
	LegalMoves(ctx context.Context, sessionID string) ([]string, error)
}

// SessionHandler handles session-related endpoints. Observer fan-out
// happens inside the coordinator, so handlers only return the snapshot.
type SessionHandler struct {
	coordinator Coordinator
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(coordinator Coordinator) *SessionHandler {
	return &SessionHandler{coordinator: coordinator}
}

// RegisterRoutes registers session routes.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Post("/{sessionID}/join", h.Join)
		r.Post("/{sessionID}/moves", h.Move)
		r.Post("/{sessionID}/resign", h.Resign)
		r.Get("/{sessionID}/state", h.State)
		r.Get("/{sessionID}/moves/legal", h.LegalMoves)
	})
}

type createRequest struct {
	RequestedSeat string `json:"requested_seat"`
}

// Create creates a new session with the caller in the requested seat.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	playerID := identity.PlayerIDFromContext(r.Context())
	if playerID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	req := createRequest{RequestedSeat: string(domain.SeatFirst)}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	seat := domain.Seat(req.RequestedSeat)
	if !seat.Valid() {
		Error(w, http.StatusBadRequest, "requested_seat must be first or second")
		return
	}

	sessionID, err := h.coordinator.CreateSession(r.Context(), playerID, seat)
	if err != nil {
		slog.Error("Failed to create session", "error", err, "player_id", playerID)
		CoordinatorError(w, err)
		return
	}

	JSON(w, http.StatusCreated, map[string]string{"session_id": sessionID})
}

// Join seats the caller in the session's open seat.
func (h *SessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	playerID := identity.PlayerIDFromContext(r.Context())
	if playerID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	sessionID := chi.URLParam(r, "sessionID")

	snapshot, err := h.coordinator.JoinSession(r.Context(), sessionID, playerID)
	if err != nil {
		CoordinatorError(w, err)
		return
	}

	JSON(w, http.StatusOK, snapshot)
}

type moveRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// Move applies a move for the caller.
func (h *SessionHandler) Move(w http.ResponseWriter, r *http.Request) {
	playerID := identity.PlayerIDFromContext(r.Context())
	if playerID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	sessionID := chi.URLParam(r, "sessionID")

	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.From == "" || req.To == "" {
		Error(w, http.StatusBadRequest, "from and to squares are required")
		return
	}

	snapshot, err := h.coordinator.ApplyMove(r.Context(), sessionID, playerID, req.From, req.To, req.Promotion)
	if err != nil {
		CoordinatorError(w, err)
		return
	}

	JSON(w, http.StatusOK, snapshot)
}

// Resign completes the session in favor of the caller's opponent.
func (h *SessionHandler) Resign(w http.ResponseWriter, r *http.Request) {
	playerID := identity.PlayerIDFromContext(r.Context())
	if playerID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	sessionID := chi.URLParam(r, "sessionID")

	snapshot, err := h.coordinator.Resign(r.Context(), sessionID, playerID)
	if err != nil {
		CoordinatorError(w, err)
		return
	}

	JSON(w, http.StatusOK, snapshot)
}

// State returns the current session snapshot.
func (h *SessionHandler) State(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	snapshot, err := h.coordinator.GetSessionState(r.Context(), sessionID)
	if err != nil {
		CoordinatorError(w, err)
		return
	}

	JSON(w, http.StatusOK, snapshot)
}

// LegalMoves lists legal moves for the session's current position.
func (h *SessionHandler) LegalMoves(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	moves, err := h.coordinator.LegalMoves(r.Context(), sessionID)
	if err != nil {
		CoordinatorError(w, err)
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{"moves": moves})
}
