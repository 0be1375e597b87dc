package game

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/Sardor8866/festery/internal/game/board"
)

// Registry manages variant registration and lookup. It is also the
// multiplier table provider: every lookup goes through a difficulty.
type Registry struct {
	variants map[string]Variant
	mu       sync.RWMutex
}

// NewRegistry creates a new variant registry.
func NewRegistry() *Registry {
	return &Registry{
		variants: make(map[string]Variant),
	}
}

// Register adds a variant to the registry after checking that every level
// has a valid board and table. A variant with the same command is replaced.
func (r *Registry) Register(v Variant) error {
	if v == nil {
		return fmt.Errorf("cannot register nil variant")
	}
	if v.Command() == "" {
		return fmt.Errorf("variant command cannot be empty")
	}
	if len(v.Levels()) == 0 {
		return fmt.Errorf("variant %s has no levels", v.Command())
	}
	for _, level := range v.Levels() {
		if err := checkLevel(v, level); err != nil {
			return fmt.Errorf("variant %s level %d: %w", v.Command(), level, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.variants[v.Command()] = v
	return nil
}

func checkLevel(v Variant, level int) error {
	spec, err := v.Board(level)
	if err != nil {
		return err
	}
	if err := spec.Validate(); err != nil {
		return err
	}
	if spec.Topology != v.Topology() {
		return fmt.Errorf("board topology %s does not match variant topology %s", spec.Topology, v.Topology())
	}
	table, err := v.Table(level)
	if err != nil {
		return err
	}
	if err := ValidateTable(table); err != nil {
		return err
	}
	if len(table) != spec.DecisionPoints {
		return fmt.Errorf("table has %d entries for %d decision points", len(table), spec.DecisionPoints)
	}
	return nil
}

// Get retrieves a variant by its command.
func (r *Registry) Get(command string) (Variant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.variants[command]
	return v, ok
}

// List returns all registered variants sorted by command.
func (r *Registry) List() []Variant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	variants := make([]Variant, 0, len(r.variants))
	for _, v := range r.variants {
		variants = append(variants, v)
	}
	slices.SortFunc(variants, func(a, b Variant) int {
		return strings.Compare(a.Command(), b.Command())
	})
	return variants
}

// Commands returns the commands of all registered variants, sorted.
func (r *Registry) Commands() []string {
	variants := r.List()
	commands := make([]string, len(variants))
	for i, v := range variants {
		commands[i] = v.Command()
	}
	return commands
}

// Count returns the number of registered variants.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.variants)
}

// Resolve returns the variant for a difficulty, or ErrInvalidDifficulty when
// either the game or the level is unknown.
func (r *Registry) Resolve(d Difficulty) (Variant, error) {
	v, ok := r.Get(d.Game)
	if !ok {
		return nil, fmt.Errorf("%w: %w %q", ErrInvalidDifficulty, ErrUnknownGame, d.Game)
	}
	if !slices.Contains(v.Levels(), d.Level) {
		return nil, fmt.Errorf("%w: %s has no level %d", ErrInvalidDifficulty, d.Game, d.Level)
	}
	return v, nil
}

// Table returns the multiplier table for a difficulty. The returned slice is
// a copy.
func (r *Registry) Table(d Difficulty) ([]float64, error) {
	v, err := r.Resolve(d)
	if err != nil {
		return nil, err
	}
	table, err := v.Table(d.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDifficulty, err)
	}
	return slices.Clone(table), nil
}

// Board returns the board generation parameters for a difficulty.
func (r *Registry) Board(d Difficulty) (board.Spec, error) {
	v, err := r.Resolve(d)
	if err != nil {
		return board.Spec{}, err
	}
	spec, err := v.Board(d.Level)
	if err != nil {
		return board.Spec{}, fmt.Errorf("%w: %w", ErrInvalidDifficulty, err)
	}
	return spec, nil
}
