// Package mines implements the flat reveal-grid variant: one square board
// with a player-chosen number of mines.
package mines

import (
	"fmt"
	"math"

	"github.com/Sardor8866/festery/internal/game"
	"github.com/Sardor8866/festery/internal/game/board"
)

const (
	DefaultSize     = 5
	DefaultMinMines = 2
	DefaultMaxMines = 24
	DefaultMinBet   = 10
	DefaultMaxBet   = 1000000
)

// Config holds configuration for the mines game.
type Config struct {
	Size     int
	MinMines int
	MaxMines int
	MinBet   int64
	MaxBet   int64
}

// Game implements game.Variant for mines.
type Game struct {
	cells    int
	minMines int
	maxMines int
	minBet   int64
	maxBet   int64
	tables   map[int][]float64
}

// New creates a mines game. Zero fields in cfg take defaults.
func New(cfg *Config) (*Game, error) {
	c := Config{
		Size:     DefaultSize,
		MinMines: DefaultMinMines,
		MaxMines: DefaultMaxMines,
		MinBet:   DefaultMinBet,
		MaxBet:   DefaultMaxBet,
	}
	if cfg != nil {
		if cfg.Size > 0 {
			c.Size = cfg.Size
		}
		if cfg.MinMines > 0 {
			c.MinMines = cfg.MinMines
		}
		if cfg.MaxMines > 0 {
			c.MaxMines = cfg.MaxMines
		}
		if cfg.MinBet > 0 {
			c.MinBet = cfg.MinBet
		}
		if cfg.MaxBet > 0 {
			c.MaxBet = cfg.MaxBet
		}
	}

	cells := c.Size * c.Size
	if c.MinMines < 1 || c.MinMines > c.MaxMines || c.MaxMines >= cells {
		return nil, fmt.Errorf("invalid mine range %d..%d on %d cells", c.MinMines, c.MaxMines, cells)
	}

	g := &Game{
		cells:    cells,
		minMines: c.MinMines,
		maxMines: c.MaxMines,
		minBet:   c.MinBet,
		maxBet:   c.MaxBet,
		tables:   make(map[int][]float64, c.MaxMines-c.MinMines+1),
	}
	for m := c.MinMines; m <= c.MaxMines; m++ {
		g.tables[m] = Multipliers(cells, m)
	}
	return g, nil
}

// Multipliers returns the payout table for a board of cells with mines.
// Entry k-1 is the multiplier after k safe reveals: the running product of
// cells/(cells-mines-k+1), rounded to cents.
func Multipliers(cells, mines int) []float64 {
	safe := cells - mines
	table := make([]float64, 0, safe)
	current := 1.0
	for opened := 1; opened <= safe; opened++ {
		current *= float64(cells) / float64(cells-mines-opened+1)
		table = append(table, math.Round(current*100)/100)
	}
	return table
}

// Name returns the game's display name.
func (g *Game) Name() string {
	return "Mines"
}

// Command returns the command that selects this game.
func (g *Game) Command() string {
	return "mines"
}

// Description returns a brief description of the game.
func (g *Game) Description() string {
	return fmt.Sprintf("Open cells on a %d-cell board and cash out before you hit a mine.", g.cells)
}

// Topology returns board.Flat.
func (g *Game) Topology() board.Topology {
	return board.Flat
}

// Levels returns the supported mine counts.
func (g *Game) Levels() []int {
	levels := make([]int, 0, g.maxMines-g.minMines+1)
	for m := g.minMines; m <= g.maxMines; m++ {
		levels = append(levels, m)
	}
	return levels
}

// Board returns the generation parameters for a mine count. Every safe cell
// is one decision point.
func (g *Game) Board(mines int) (board.Spec, error) {
	if mines < g.minMines || mines > g.maxMines {
		return board.Spec{}, fmt.Errorf("%w: mines must be between %d and %d", game.ErrInvalidDifficulty, g.minMines, g.maxMines)
	}
	return board.Spec{
		Topology:       board.Flat,
		DecisionPoints: g.cells - mines,
		Slots:          g.cells,
		Hazards:        mines,
	}, nil
}

// Table returns the multiplier table for a mine count.
func (g *Game) Table(mines int) ([]float64, error) {
	table, ok := g.tables[mines]
	if !ok {
		return nil, fmt.Errorf("%w: no table for %d mines", game.ErrInvalidDifficulty, mines)
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
