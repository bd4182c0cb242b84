// Package api provides HTTP handlers for the session API.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/quickchess/server/internal/game"
	"github.com/quickchess/server/internal/lock"
	"github.com/quickchess/server/internal/rules"
)

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// CoordinatorError writes a coordinator error with its stable code and the
// matching HTTP status.
func CoordinatorError(w http.ResponseWriter, err error) {
	JSON(w, statusOf(err), map[string]string{
		"error": err.Error(),
		"code":  game.CodeOf(err),
	})
}

// statusOf maps coordinator errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, game.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrSessionFull),
		errors.Is(err, game.ErrDuplicateSeat),
		errors.Is(err, game.ErrGameNotActive),
		errors.Is(err, game.ErrNotYourTurn),
		errors.Is(err, lock.ErrSessionBusy):
		return http.StatusConflict
	case errors.Is(err, game.ErrNotAParticipant):
		return http.StatusForbidden
	case errors.Is(err, rules.ErrIllegalMove):
		return http.StatusUnprocessableEntity
	case errors.Is(err, game.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
