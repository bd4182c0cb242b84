// Package rules adapts the chess rules engine behind a small interface.
//
// The coordinator treats board positions as opaque strings; only this
// package interprets them. Positions are FEN.
package rules

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/notnil/chess"
)

// StartingPosition is the standard initial position in FEN.
const StartingPosition = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// ErrIllegalMove marks a move the rules engine rejected. The position is
// never mutated on rejection.
var ErrIllegalMove = errors.New("illegal move")

// Result is the outcome of a successfully applied move.
type Result struct {
	// Position is the FEN after the move.
	Position string
	// Check reports whether the move put the opponent in check.
	Check bool
}

// Method classifies how a terminal position was reached.
type Method int

const (
	MethodNone Method = iota
	MethodCheckmate
	MethodStalemate
	MethodInsufficientMaterial
	MethodFiftyMove
)

// Status describes whether a position is terminal and why.
type Status struct {
	IsOver      bool
	IsCheck     bool
	IsCheckmate bool
	IsStalemate bool
	IsDraw      bool
	Method      Method
}

// Engine validates and applies moves and classifies terminal positions.
// Implementations must be stateless: every call derives everything from the
// position argument.
type Engine interface {
	// ApplyMove applies from->to (with optional promotion piece letter,
	// e.g. "q") to the position. Returns an error wrapping ErrIllegalMove
	// when the engine rejects the move.
	ApplyMove(position, from, to, promotion string) (Result, error)

	// LegalMoves lists all legal moves from the position in long algebraic
	// notation ("e2e4", "e7e8q").
	LegalMoves(position string) ([]string, error)

	// TerminalStatus classifies the position.
	TerminalStatus(position string) (Status, error)
}

// ChessEngine implements Engine on top of github.com/notnil/chess.
type ChessEngine struct{}

// NewChessEngine returns the production rules engine.
func NewChessEngine() *ChessEngine {
	return &ChessEngine{}
}

func gameFromFEN(position string) (*chess.Game, error) {
	fen, err := chess.FEN(position)
	if err != nil {
		return nil, fmt.Errorf("parse position: %w", err)
	}
	return chess.NewGame(fen), nil
}

// ApplyMove applies a move in long algebraic notation to a FEN position.
func (e *ChessEngine) ApplyMove(position, from, to, promotion string) (Result, error) {
	game, err := gameFromFEN(position)
	if err != nil {
		return Result{}, err
	}

	want := strings.ToLower(from + to + promotion)
	for _, move := range game.ValidMoves() {
		if move.String() != want {
			continue
		}
		if err := game.Move(move); err != nil {
			return Result{}, fmt.Errorf("apply move %s: %w", want, err)
		}
		return Result{
			Position: game.Position().String(),
			Check:    move.HasTag(chess.Check),
		}, nil
	}

	return Result{}, fmt.Errorf("%w: %s-%s is not legal in this position", ErrIllegalMove, from, to)
}

// LegalMoves lists the legal moves from a FEN position.
func (e *ChessEngine) LegalMoves(position string) ([]string, error) {
	game, err := gameFromFEN(position)
	if err != nil {
		return nil, err
	}

	valid := game.ValidMoves()
	moves := make([]string, 0, len(valid))
	for _, move := range valid {
		moves = append(moves, move.String())
	}
	return moves, nil
}

// TerminalStatus classifies a FEN position. Checkmate, stalemate, and
// insufficient material come from the chess library; the fifty-move rule is
// derived from the halfmove clock carried in the FEN itself. Repetition
// cannot be decided from a single position and is handled by the caller,
// which holds the move log.
func (e *ChessEngine) TerminalStatus(position string) (Status, error) {
	game, err := gameFromFEN(position)
	if err != nil {
		return Status{}, err
	}

	var status Status
	switch game.Method() {
	case chess.Checkmate:
		status = Status{IsOver: true, IsCheck: true, IsCheckmate: true, Method: MethodCheckmate}
	case chess.Stalemate:
		status = Status{IsOver: true, IsStalemate: true, IsDraw: true, Method: MethodStalemate}
	case chess.InsufficientMaterial:
		status = Status{IsOver: true, IsDraw: true, Method: MethodInsufficientMaterial}
	default:
		if game.Outcome() == chess.Draw {
			status = Status{IsOver: true, IsDraw: true, Method: MethodInsufficientMaterial}
		}
	}

	if !status.IsOver && halfmoveClock(position) >= 100 {
		status = Status{IsOver: true, IsDraw: true, Method: MethodFiftyMove}
	}

	return status, nil
}

// halfmoveClock extracts the halfmove clock (fifth FEN field). Returns 0
// when the field is missing or not a number.
func halfmoveClock(position string) int {
	fields := strings.Fields(position)
	if len(fields) < 5 {
		return 0
	}
	n, err := strconv.Atoi(fields[4])
	if err != nil {
		return 0
	}
	return n
}

// NormalizePosition reduces a FEN to the fields that identify a repeated
// position for threefold-repetition purposes: piece placement, side to move,
// castling rights, and en passant square.
func NormalizePosition(position string) string {
	fields := strings.Fields(position)
	if len(fields) < 4 {
		return position
	}
	return strings.Join(fields[:4], " ")
}
