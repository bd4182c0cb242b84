package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/quickchess/server/internal/domain"
	"github.com/quickchess/server/internal/game"
	"github.com/quickchess/server/internal/identity"
	"github.com/quickchess/server/internal/rules"
)

// fakeCoordinator returns canned results and records the last call.
type fakeCoordinator struct {
	snapshot *domain.Snapshot
	err      error

	lastSessionID string
	lastPlayer    string
	lastSeat      domain.Seat
}

func (f *fakeCoordinator) CreateSession(ctx context.Context, creator string, requestedSeat domain.Seat) (string, error) {
	f.lastPlayer = creator
	f.lastSeat = requestedSeat
	if f.err != nil {
		return "", f.err
	}
	return "session-1", nil
}

func (f *fakeCoordinator) JoinSession(ctx context.Context, sessionID, joiner string) (*domain.Snapshot, error) {
	f.lastSessionID = sessionID
	f.lastPlayer = joiner
	return f.snapshot, f.err
}

func (f *fakeCoordinator) ApplyMove(ctx context.Context, sessionID, mover, from, to, promotion string) (*domain.Snapshot, error) {
	f.lastSessionID = sessionID
	f.lastPlayer = mover
	return f.snapshot, f.err
}

func (f *fakeCoordinator) Resign(ctx context.Context, sessionID, id string) (*domain.Snapshot, error) {
	f.lastSessionID = sessionID
	f.lastPlayer = id
	return f.snapshot, f.err
}

func (f *fakeCoordinator) GetSessionState(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	f.lastSessionID = sessionID
	return f.snapshot, f.err
}

func (f *fakeCoordinator) LegalMoves(ctx context.Context, sessionID string) ([]string, error) {
	f.lastSessionID = sessionID
	if f.err != nil {
		return nil, f.err
	}
	return []string{"e2e4", "d2d4"}, nil
}

func newTestRouter(coordinator *fakeCoordinator) http.Handler {
	r := chi.NewRouter()
	// Stand-in for the identity middleware.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := identity.WithPlayerID(req.Context(), "anon_test_player")
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	NewSessionHandler(coordinator).RegisterRoutes(r)
	return r
}

func activeSnapshot() *domain.Snapshot {
	return &domain.Snapshot{
		SessionID: "session-1",
		Position:  "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		MoveLog:   []domain.Move{},
		Seats:     map[domain.Seat]string{domain.SeatFirst: "alice", domain.SeatSecond: "bob"},
		TurnSeat:  domain.SeatFirst,
		Lifecycle: domain.LifecycleActive,
	}
}

func TestCreateSessionEndpoint(t *testing.T) {
	coordinator := &fakeCoordinator{}
	router := newTestRouter(coordinator)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/", strings.NewReader(`{"requested_seat":"second"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Expected JSON body, got %v", err)
	}
	if body["session_id"] != "session-1" {
		t.Errorf("Expected session id in response, got %q", body["session_id"])
	}
	if coordinator.lastPlayer != "anon_test_player" {
		t.Errorf("Expected identity from context, got %q", coordinator.lastPlayer)
	}
	if coordinator.lastSeat != domain.SeatSecond {
		t.Errorf("Expected requested seat passed through, got %s", coordinator.lastSeat)
	}
}

func TestCreateSessionDefaultsToFirstSeat(t *testing.T) {
	coordinator := &fakeCoordinator{}
	router := newTestRouter(coordinator)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if coordinator.lastSeat != domain.SeatFirst {
		t.Errorf("Expected first seat by default, got %s", coordinator.lastSeat)
	}
}

func TestCreateSessionRejectsUnknownSeat(t *testing.T) {
	router := newTestRouter(&fakeCoordinator{})

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/", strings.NewReader(`{"requested_seat":"white"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestJoinEndpoint(t *testing.T) {
	coordinator := &fakeCoordinator{snapshot: activeSnapshot()}
	router := newTestRouter(coordinator)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/session-1/join", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if coordinator.lastSessionID != "session-1" {
		t.Errorf("Expected session id from path, got %q", coordinator.lastSessionID)
	}
	if coordinator.lastPlayer != "anon_test_player" {
		t.Errorf("Expected identity from context, got %q", coordinator.lastPlayer)
	}
}

func TestMoveEndpoint(t *testing.T) {
	coordinator := &fakeCoordinator{snapshot: activeSnapshot()}
	router := newTestRouter(coordinator)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/session-1/moves",
		strings.NewReader(`{"from":"e2","to":"e4"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("Expected snapshot body, got %v", err)
	}
	if snap.SessionID != "session-1" {
		t.Errorf("Expected snapshot in response, got %+v", snap)
	}
}

func TestMoveEndpointRequiresSquares(t *testing.T) {
	coordinator := &fakeCoordinator{snapshot: activeSnapshot()}
	router := newTestRouter(coordinator)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/session-1/moves",
		strings.NewReader(`{"from":"e2"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
	if coordinator.lastSessionID != "" {
		t.Errorf("Expected coordinator untouched for rejected request, got call for %q", coordinator.lastSessionID)
	}
}

func TestStateEndpoint(t *testing.T) {
	coordinator := &fakeCoordinator{snapshot: activeSnapshot()}
	router := newTestRouter(coordinator)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/session-1/state", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestLegalMovesEndpoint(t *testing.T) {
	coordinator := &fakeCoordinator{}
	router := newTestRouter(coordinator)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/session-1/moves/legal", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Moves []string `json:"moves"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Expected JSON body, got %v", err)
	}
	if len(body.Moves) != 2 {
		t.Errorf("Expected two moves, got %v", body.Moves)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{game.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{game.ErrSessionFull, http.StatusConflict, "SESSION_FULL"},
		{game.ErrDuplicateSeat, http.StatusConflict, "DUPLICATE_SEAT"},
		{game.ErrGameNotActive, http.StatusConflict, "GAME_NOT_ACTIVE"},
		{game.ErrNotYourTurn, http.StatusConflict, "NOT_YOUR_TURN"},
		{game.ErrNotAParticipant, http.StatusForbidden, "NOT_A_PARTICIPANT"},
		{fmt.Errorf("%w: e2-e5", rules.ErrIllegalMove), http.StatusUnprocessableEntity, "ILLEGAL_MOVE"},
		{fmt.Errorf("%w: cache down", game.ErrPersistence), http.StatusServiceUnavailable, "PERSISTENCE"},
		{fmt.Errorf("wiring exploded"), http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tc := range cases {
		coordinator := &fakeCoordinator{err: tc.err}
		router := newTestRouter(coordinator)

		req := httptest.NewRequest(http.MethodPost, "/api/sessions/session-1/join", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != tc.status {
			t.Errorf("Expected %d for %v, got %d", tc.status, tc.err, rec.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("Expected JSON error body, got %v", err)
		}
		if body["code"] != tc.code {
			t.Errorf("Expected code %s for %v, got %s", tc.code, tc.err, body["code"])
		}
	}
}
