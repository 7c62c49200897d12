// Package game implements the per-chat turn-based game sessions and the engine persisting them.
package game

import (
	"errors"
	"time"

	"git.skobk.in/skobkin/telegram-group-keeper-bot/apperr"
)

// Kind names a game variant. It is part of the session key.
type Kind string

const (
	KindHangman   Kind = "hangman"
	KindTicTacToe Kind = "tictactoe"
	KindWordGame  Kind = "wordgame"
)

var (
	ErrAlreadyActive = apperr.New(apperr.Conflict, "A game of this kind is already active in this chat.")
	ErrNotActive     = apperr.New(apperr.NotFound, "There is no active game of this kind in this chat.")
	ErrNotAuthorized = apperr.New(apperr.Authorization, "You are not allowed to do that in this game.")
	ErrInvalidMove   = apperr.New(apperr.Validation, "Invalid move.")
	ErrUnknownKind   = errors.New("unknown game kind")
)

// invalidMove keeps errors.Is(err, ErrInvalidMove) true while carrying a specific message.
func invalidMove(message string) error {
	return apperr.Wrap(apperr.Validation, message, ErrInvalidMove)
}

func notAuthorized(message string) error {
	return apperr.Wrap(apperr.Authorization, message, ErrNotAuthorized)
}

// Player is a participant. Name is kept for rendering mentions after a restart.
type Player struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Status is the state of a session after a transition.
type Status int

const (
	Ongoing Status = iota
	Won
	Lost
	Draw
	Finished
	Forfeited
)

func (s Status) String() string {
	switch s {
	case Won:
		return "won"
	case Lost:
		return "lost"
	case Draw:
		return "draw"
	case Finished:
		return "finished"
	case Forfeited:
		return "forfeited"
	default:
		return "ongoing"
	}
}

// Terminal sessions are deleted from the store.
func (s Status) Terminal() bool {
	return s != Ongoing
}

// Outcome is the result of a transition. State is the session after the transition,
// including the final state of terminal sessions.
type Outcome struct {
	Status Status
	State  State
	// Hit marks a move that made progress (a correct letter).
	Hit bool
	// Winners of a finished session.
	Winners []Player
	// RoundClosed is set when a word game round ended with this transition.
	RoundClosed bool
}

// State is one game session. Implementations are the variants of this package.
type State interface {
	Kind() Kind
	// Move applies a player's move. Errors leave the state unchanged.
	Move(actor int64, move string, now time.Time) (Outcome, error)
	Join(player Player, now time.Time) (Outcome, error)
	// CanForfeit reports whether actor may end the session.
	CanForfeit(actor int64) bool
	normalize()
}
