// Package tower implements the layered ladder variant: a fixed number of
// floors, each a row of cells with its own bombs.
package tower

import (
	"fmt"
	"maps"
	"slices"

	"github.com/Sardor8866/festery/internal/game"
	"github.com/Sardor8866/festery/internal/game/board"
)

const (
	DefaultFloors = 6
	DefaultCells  = 5
	DefaultMinBet = 10
	DefaultMaxBet = 1000000
)

// Config holds configuration for the tower game. Tables are keyed by bombs
// per floor and must have one entry per floor.
type Config struct {
	Floors int
	Cells  int
	MinBet int64
	MaxBet int64
	Tables map[int][]float64
}

// Game implements game.Variant for tower.
type Game struct {
	floors int
	cells  int
	minBet int64
	maxBet int64
	tables map[int][]float64
}

// New creates a tower game. Zero scalar fields take defaults; Tables is
// required.
func New(cfg *Config) (*Game, error) {
	if cfg == nil || len(cfg.Tables) == 0 {
		return nil, fmt.Errorf("tower requires at least one multiplier table")
	}

	g := &Game{
		floors: DefaultFloors,
		cells:  DefaultCells,
		minBet: DefaultMinBet,
		maxBet: DefaultMaxBet,
		tables: make(map[int][]float64, len(cfg.Tables)),
	}
	if cfg.Floors > 0 {
		g.floors = cfg.Floors
	}
	if cfg.Cells > 0 {
		g.cells = cfg.Cells
	}
	if cfg.MinBet > 0 {
		g.minBet = cfg.MinBet
	}
	if cfg.MaxBet > 0 {
		g.maxBet = cfg.MaxBet
	}

	for bombs, table := range cfg.Tables {
		if bombs < 1 || bombs >= g.cells {
			return nil, fmt.Errorf("invalid bomb count %d for %d cells", bombs, g.cells)
		}
		if len(table) != g.floors {
			return nil, fmt.Errorf("table for %d bombs has %d entries, want %d", bombs, len(table), g.floors)
		}
		if err := game.ValidateTable(table); err != nil {
			return nil, fmt.Errorf("table for %d bombs: %w", bombs, err)
		}
		g.tables[bombs] = slices.Clone(table)
	}
	return g, nil
}

// Name returns the game's display name.
func (g *Game) Name() string {
	return "Tower"
}

// Command returns the command that selects this game.
func (g *Game) Command() string {
	return "tower"
}

// Description returns a brief description of the game.
func (g *Game) Description() string {
	return fmt.Sprintf("Climb %d floors by picking a safe cell out of %d on each one.", g.floors, g.cells)
}

// Topology returns board.Layered.
func (g *Game) Topology() board.Topology {
	return board.Layered
}

// Levels returns the configured bomb counts.
func (g *Game) Levels() []int {
	return slices.Sorted(maps.Keys(g.tables))
}

// Board returns the generation parameters for a bomb count.
func (g *Game) Board(bombs int) (board.Spec, error) {
	if _, ok := g.tables[bombs]; !ok {
		return board.Spec{}, fmt.Errorf("%w: unsupported bomb count %d", game.ErrInvalidDifficulty, bombs)
	}
	return board.Spec{
		Topology:       board.Layered,
		DecisionPoints: g.floors,
		Slots:          g.cells,
		Hazards:        bombs,
	}, nil
}

// Table returns the multiplier table for a bomb count.
func (g *Game) Table(bombs int) ([]float64, error) {
	table, ok := g.tables[bombs]
	if !ok {
		return nil, fmt.Errorf("%w: no table for %d bombs", game.ErrInvalidDifficulty, bombs)
	}
	return table, nil
}

// ValidateBet checks the stake against the configured bounds.
func (g *Game) ValidateBet(bet int64) error {
	return game.CheckBet(bet, g.minBet, g.maxBet)
}

// MinBet returns the minimum allowed stake.
func (g *Game) MinBet() int64 {
	return g.minBet
}

// MaxBet returns the maximum allowed stake.
func (g *Game) MaxBet() int64 {
	return g.maxBet
}
