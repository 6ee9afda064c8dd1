package match

import "errors"

// Game-logic errors. All are recovered at the coordinator boundary and
// converted to an error message for the offending connection only; none of
// them terminates a session.
var (
	// ErrGameFull is returned by Join when both slots are occupied.
	ErrGameFull = errors.New("game is full")
	// ErrGameNotStarted is returned by MakeMove while the session is still
	// waiting for a second player.
	ErrGameNotStarted = errors.New("game has not started")
	// ErrGameOver is returned by MakeMove once the session is terminal.
	ErrGameOver = errors.New("game is over")
	// ErrNotYourTurn is returned by MakeMove when the caller's slot does not
	// hold the turn.
	ErrNotYourTurn = errors.New("not your turn")
	// ErrInvalidMode is returned by RequestMatch for an unknown mode.
	ErrInvalidMode = errors.New("invalid mode")
	// ErrSessionNotFound is returned when a player has no active session.
	ErrSessionNotFound = errors.New("no active session for player")
)
