// Package board provides the Connect-Four grid model: move application with
// gravity, win detection, and draw detection. It holds no locks and performs
// no I/O; callers are responsible for serializing access.
package board

import (
	"errors"
	"fmt"
)

const (
	// Rows is the board height. Row 0 is the top row.
	Rows = 6
	// Cols is the board width.
	Cols = 7
	// winLength is the number of consecutive marks required to win.
	winLength = 4
)

// Cell is the content of a single board position.
type Cell int

// Cell values. PlayerOne and PlayerTwo double as the wire encoding (1 and 2).
const (
	Empty Cell = iota
	PlayerOne
	PlayerTwo
)

// ErrInvalidColumn is returned when a move targets a column outside [0, Cols).
var ErrInvalidColumn = errors.New("column out of range")

// ErrColumnFull is returned when a move targets a column whose top cell is occupied.
var ErrColumnFull = errors.New("column is full")

// Board is a fixed 6x7 Connect-Four grid.
//
// Invariant: a cell above an empty cell in the same column is always empty —
// ApplyMove only ever fills the lowest empty cell of a column.
type Board struct {
	cells [Rows][Cols]Cell
}

// New returns an empty board.
func New() *Board {
	return &Board{}
}

// ApplyMove drops p's mark into the given column, filling the lowest empty
// cell, and returns the row it landed in.
//
// Postcondition: on error the board is unchanged.
func (b *Board) ApplyMove(col int, p Cell) (int, error) {
	if col < 0 || col >= Cols {
		return 0, fmt.Errorf("%w: %d", ErrInvalidColumn, col)
	}
	for row := Rows - 1; row >= 0; row-- {
		if b.cells[row][col] == Empty {
			b.cells[row][col] = p
			return row, nil
		}
	}
	return 0, fmt.Errorf("%w: %d", ErrColumnFull, col)
}

// CheckWinner reports whether p has four marks in an unbroken horizontal,
// vertical, or diagonal run anywhere on the board. The scan is O(Rows*Cols)
// and is called once per move.
func (b *Board) CheckWinner(p Cell) bool {
	// Right, down, down-right, down-left.
	directions := [4][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}}

	for row := 0; row < Rows; row++ {
		for col := 0; col < Cols; col++ {
			for _, d := range directions {
				if b.runFrom(row, col, d[0], d[1], p) >= winLength {
					return true
				}
			}
		}
	}
	return false
}

// runFrom counts consecutive marks of p starting at (row, col) and stepping
// by (dr, dc), stopping at the board edge, the first non-p cell, or winLength.
func (b *Board) runFrom(row, col, dr, dc int, p Cell) int {
	count := 0
	for count < winLength {
		if row < 0 || row >= Rows || col < 0 || col >= Cols {
			break
		}
		if b.cells[row][col] != p {
			break
		}
		count++
		row += dr
		col += dc
	}
	return count
}

// IsFull reports whether no column can accept another move.
func (b *Board) IsFull() bool {
	for col := 0; col < Cols; col++ {
		if b.cells[0][col] == Empty {
			return false
		}
	}
	return true
}

// ColumnOpen reports whether the given column can accept a move.
func (b *Board) ColumnOpen(col int) bool {
	return col >= 0 && col < Cols && b.cells[0][col] == Empty
}

// Cell returns the content of the given position.
//
// Precondition: row in [0, Rows) and col in [0, Cols).
func (b *Board) Cell(row, col int) Cell {
	return b.cells[row][col]
}

// Snapshot returns a copy of the grid as nested int slices (0 empty, 1/2 by
// player), suitable for JSON broadcast payloads.
func (b *Board) Snapshot() [][]int {
	out := make([][]int, Rows)
	for row := 0; row < Rows; row++ {
		out[row] = make([]int, Cols)
		for col := 0; col < Cols; col++ {
			out[row][col] = int(b.cells[row][col])
		}
	}
	return out
}
