// Package game defines the progressive game variants and the registry that
// serves their boards and multiplier tables.
package game

import (
	"errors"
	"fmt"

	"github.com/Sardor8866/festery/internal/game/board"
)

// Game errors.
var (
	ErrInvalidDifficulty = errors.New("invalid difficulty")
	ErrBetTooLow         = errors.New("bet is below the minimum")
	ErrBetTooHigh        = errors.New("bet exceeds the maximum")
	ErrUnknownGame       = errors.New("unknown game")
)

// Difficulty selects a variant and its hazard density.
type Difficulty struct {
	Game  string `json:"game"`
	Level int    `json:"level"`
}

func (d Difficulty) String() string {
	return fmt.Sprintf("%s/%d", d.Game, d.Level)
}

// Variant defines the interface that every progressive game implements.
// A variant is pure configuration: it never holds session state.
type Variant interface {
	// Name returns the game's display name (e.g., "Tower").
	Name() string

	// Command returns the identifier used to select this game (e.g., "tower").
	Command() string

	// Description returns a brief description of the game.
	Description() string

	// Topology returns the board shape shared by every level.
	Topology() board.Topology

	// Levels returns the supported difficulty levels in ascending order.
	Levels() []int

	// Board returns the generation parameters for a level.
	Board(level int) (board.Spec, error)

	// Table returns the multiplier table for a level, one entry per decision
	// point, strictly increasing with Table[0] > 1.
	Table(level int) ([]float64, error)

	// ValidateBet checks the stake against the variant's bounds.
	ValidateBet(bet int64) error

	// MinBet returns the minimum allowed stake in minor units.
	MinBet() int64

	// MaxBet returns the maximum allowed stake. Returns 0 if there is no maximum.
	MaxBet() int64
}

// ValidateTable checks that a multiplier table is usable.
func ValidateTable(table []float64) error {
	if len(table) == 0 {
		return errors.New("multiplier table is empty")
	}
	if table[0] <= 1.0 {
		return fmt.Errorf("first multiplier must exceed 1.0, got %v", table[0])
	}
	for i := 1; i < len(table); i++ {
		if table[i] <= table[i-1] {
			return fmt.Errorf("multipliers must strictly increase: [%d]=%v, [%d]=%v", i-1, table[i-1], i, table[i])
		}
	}
	return nil
}

// CheckBet applies min/max stake bounds. A zero max means unbounded.
func CheckBet(bet, minBet, maxBet int64) error {
	if bet <= 0 || bet < minBet {
		return fmt.Errorf("%w: %d < %d", ErrBetTooLow, bet, minBet)
	}
	if maxBet > 0 && bet > maxBet {
		return fmt.Errorf("%w: %d > %d", ErrBetTooHigh, bet, maxBet)
	}
	return nil
}
