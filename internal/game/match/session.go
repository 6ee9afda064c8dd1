// Package match provides game sessions and the matchmaker that pairs
// connected players into them.
package match

import (
	"sync"
	"time"

	"github.com/cory-johannsen/dropfour/internal/game/board"
)

// Slot identifies a player's seat within one session, distinct from the
// player's connection identifier.
type Slot int

// Slot values. SlotNone marks an empty seat and an absent winner.
const (
	SlotNone Slot = 0
	SlotOne  Slot = 1
	SlotTwo  Slot = 2
)

// other returns the opposing slot.
func (s Slot) other() Slot {
	if s == SlotOne {
		return SlotTwo
	}
	return SlotOne
}

// cell returns the board mark for this slot.
func (s Slot) cell() board.Cell {
	return board.Cell(s)
}

// State is the session lifecycle state.
type State int

// Session states. There is no transition out of the two terminal states.
const (
	StateWaiting State = iota
	StateInProgress
	StateWon
	StateDrawn
)

// View is an immutable public snapshot of a session, taken under the session
// lock and safe to broadcast after the lock is released.
type View struct {
	GameID      string
	Board       [][]int
	CurrentTurn Slot
	GameOver    bool
	Winner      Slot // SlotNone unless the game was won
}

// Session owns one board plus two player slots, the turn, and the outcome.
// All state transitions happen under the session mutex: concurrent MakeMove
// calls are serialized, and only the holder observes and mutates turn and
// outcome. Broadcast delivery never happens under the lock.
type Session struct {
	id        string
	createdAt time.Time

	mu      sync.Mutex
	grid    *board.Board
	players [2]string // slot 1 at index 0, slot 2 at index 1; "" = empty seat
	turn    Slot
	state   State
	winner  Slot
}

// NewSession creates an empty waiting session with the given identifier.
// Slot one moves first.
func NewSession(id string) *Session {
	return &Session{
		id:        id,
		createdAt: time.Now(),
		grid:      board.New(),
		turn:      SlotOne,
		state:     StateWaiting,
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Join assigns playerID the next open slot and returns it. Filling slot two
// transitions the session to in-progress.
//
// Postcondition: returns ErrGameFull and leaves the session unchanged when
// both slots are already occupied.
func (s *Session) Join(playerID string) (Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.players[0] == "":
		s.players[0] = playerID
		return SlotOne, nil
	case s.players[1] == "":
		s.players[1] = playerID
		s.state = StateInProgress
		return SlotTwo, nil
	default:
		return SlotNone, ErrGameFull
	}
}

// MakeMove applies playerID's move to the given column and returns the
// updated view for broadcast.
//
// Failure order: ErrGameOver once terminal, ErrGameNotStarted while waiting,
// ErrNotYourTurn when the caller does not hold the turn, then board errors.
// On any error the board, turn, and outcome are unchanged.
func (s *Session) MakeMove(playerID string, col int) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateWon, StateDrawn:
		return View{}, ErrGameOver
	case StateWaiting:
		return View{}, ErrGameNotStarted
	}

	slot := s.slotOf(playerID)
	if slot != s.turn {
		return View{}, ErrNotYourTurn
	}

	if _, err := s.grid.ApplyMove(col, slot.cell()); err != nil {
		return View{}, err
	}

	switch {
	case s.grid.CheckWinner(slot.cell()):
		s.state = StateWon
		s.winner = slot
	case s.grid.IsFull():
		s.state = StateDrawn
	default:
		s.turn = slot.other()
	}

	return s.viewLocked(), nil
}

// View returns the current public snapshot without mutating the session.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Players returns the player identifiers currently seated, slot one first.
// Absent seats are omitted.
func (s *Session) Players() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, 2)
	for _, p := range s.players {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SlotOf returns the slot held by playerID, or SlotNone if not seated.
func (s *Session) SlotOf(playerID string) Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slotOf(playerID)
}

// Turn returns the slot currently holding the turn.
func (s *Session) Turn() Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turn
}

// State returns the session lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Terminal reports whether the session has reached a terminal outcome.
func (s *Session) Terminal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateWon || s.state == StateDrawn
}

// OpenColumns returns the columns that can still accept a move, in ascending
// order. The bot driver samples from this set.
func (s *Session) OpenColumns() []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var open []int
	for col := 0; col < board.Cols; col++ {
		if s.grid.ColumnOpen(col) {
			open = append(open, col)
		}
	}
	return open
}

func (s *Session) slotOf(playerID string) Slot {
	switch playerID {
	case "":
		return SlotNone
	case s.players[0]:
		return SlotOne
	case s.players[1]:
		return SlotTwo
	}
	return SlotNone
}

func (s *Session) viewLocked() View {
	return View{
		GameID:      s.id,
		Board:       s.grid.Snapshot(),
		CurrentTurn: s.turn,
		GameOver:    s.state == StateWon || s.state == StateDrawn,
		Winner:      s.winner,
	}
}
