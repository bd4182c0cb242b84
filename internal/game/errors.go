package game

import (
	"errors"

	"github.com/quickchess/server/internal/lock"
	"github.com/quickchess/server/internal/rules"
)

// Session errors surfaced to callers. Each maps to a stable code so clients
// can distinguish retryable failures from permanent ones.
var (
	ErrNotFound        = errors.New("session not found")
	ErrSessionFull     = errors.New("session already has both seats occupied")
	ErrDuplicateSeat   = errors.New("player already occupies a seat in this session")
	ErrGameNotActive   = errors.New("session is not active")
	ErrNotAParticipant = errors.New("player holds no seat in this session")
	ErrNotYourTurn     = errors.New("it is not this player's turn")
	ErrPersistence     = errors.New("persistence failure")
)

// CodeOf maps an error to its stable wire code. Unknown errors map to
// INTERNAL.
func CodeOf(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrSessionFull):
		return "SESSION_FULL"
	case errors.Is(err, ErrDuplicateSeat):
		return "DUPLICATE_SEAT"
	case errors.Is(err, ErrGameNotActive):
		return "GAME_NOT_ACTIVE"
	case errors.Is(err, ErrNotAParticipant):
		return "NOT_A_PARTICIPANT"
	case errors.Is(err, ErrNotYourTurn):
		return "NOT_YOUR_TURN"
	case errors.Is(err, rules.ErrIllegalMove):
		return "ILLEGAL_MOVE"
	case errors.Is(err, ErrPersistence):
		return "PERSISTENCE"
	case errors.Is(err, lock.ErrSessionBusy):
		return "SESSION_BUSY"
	default:
		return "INTERNAL"
	}
}
