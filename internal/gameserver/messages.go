package gameserver

import (
	"encoding/json"
	"fmt"

	"github.com/cory-johannsen/dropfour/internal/game/match"
)

// Inbound message types.
const (
	TypeSelectMode = "select_mode"
	TypeMove       = "move"
)

// Outbound message types.
const (
	TypeGameStatus = "game_status"
	TypeGameUpdate = "game_update"
	TypeError      = "error"
)

// ClientMessage is the inbound envelope read from a connection.
// Mode is set for select_mode, Column for move.
type ClientMessage struct {
	Type   string `json:"type"`
	Mode   string `json:"mode,omitempty"`
	Column *int   `json:"column,omitempty"`
}

// ParseClientMessage decodes an inbound payload.
func ParseClientMessage(raw []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("decoding client message: %w", err)
	}
	return msg, nil
}

// GameStatus tells a player whether their match is waiting or started and
// which seat they hold.
type GameStatus struct {
	Type       string `json:"type"`
	Status     string `json:"status"` // "waiting" or "started"
	PlayerSlot int    `json:"player_slot"`
	GameID     string `json:"game_id"`
}

// NewGameStatus builds a game_status message.
func NewGameStatus(started bool, slot match.Slot, gameID string) GameStatus {
	status := "waiting"
	if started {
		status = "started"
	}
	return GameStatus{
		Type:       TypeGameStatus,
		Status:     status,
		PlayerSlot: int(slot),
		GameID:     gameID,
	}
}

// GameUpdate carries the post-move state of a session to its players.
type GameUpdate struct {
	Type        string  `json:"type"`
	Board       [][]int `json:"board"`
	CurrentTurn int     `json:"current_turn"`
	GameOver    bool    `json:"game_over"`
	Winner      *int    `json:"winner"` // null until the game is won
}

// NewGameUpdate builds a game_update message from a session view.
func NewGameUpdate(v match.View) GameUpdate {
	var winner *int
	if v.Winner != match.SlotNone {
		w := int(v.Winner)
		winner = &w
	}
	return GameUpdate{
		Type:        TypeGameUpdate,
		Board:       v.Board,
		CurrentTurn: int(v.CurrentTurn),
		GameOver:    v.GameOver,
		Winner:      winner,
	}
}

// ErrorMessage reports a rejected request to the offending connection only.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewErrorMessage builds an error message.
func NewErrorMessage(text string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Message: text}
}

// mustMarshal encodes an outbound message. The message structs contain only
// JSON-encodable fields, so failure indicates a programming error.
func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic("gameserver: marshalling outbound message: " + err.Error())
	}
	return data
}
