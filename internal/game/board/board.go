// Package board generates randomized hazard layouts for progressive sessions.
package board

import (
	"errors"
	"fmt"
	"slices"
)

// Topology is the shape of a board.
type Topology string

const (
	// Flat is a single wide board with hazards scattered once.
	Flat Topology = "flat"
	// Layered is an ordered sequence of levels, each with its own hazards.
	Layered Topology = "layered"
)

// Valid reports whether t is a known topology.
func (t Topology) Valid() bool {
	return t == Flat || t == Layered
}

// Board generation errors.
var (
	ErrUnknownTopology = errors.New("unknown board topology")
	ErrTooManyHazards  = errors.New("hazards must leave at least one safe slot")
	ErrNoHazards       = errors.New("at least one hazard per decision point is required")
	ErrNoDecisions     = errors.New("at least one decision point is required")
	ErrTooManyPoints   = errors.New("flat board has fewer safe slots than decision points")
)

// Spec parameterizes one generation.
type Spec struct {
	Topology       Topology
	DecisionPoints int
	Slots          int // slots per decision point
	Hazards        int // hazards per decision point
}

// Validate checks the spec for configuration errors.
func (s Spec) Validate() error {
	if !s.Topology.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownTopology, s.Topology)
	}
	if s.DecisionPoints < 1 {
		return ErrNoDecisions
	}
	if s.Hazards < 1 {
		return ErrNoHazards
	}
	if s.Hazards >= s.Slots {
		return fmt.Errorf("%w: %d hazards on %d slots", ErrTooManyHazards, s.Hazards, s.Slots)
	}
	// Every flat decision point is one safe reveal on the same board.
	if s.Topology == Flat && s.DecisionPoints > s.Slots-s.Hazards {
		return fmt.Errorf("%w: %d points, %d safe slots", ErrTooManyPoints, s.DecisionPoints, s.Slots-s.Hazards)
	}
	return nil
}

// Layout is an immutable hazard assignment. A flat layout has one hazard set;
// a layered layout has one per level. Sets are sorted ascending.
type Layout struct {
	topology Topology
	slots    int
	hazards  [][]int
	lookup   []map[int]struct{}
}

// NewLayout builds a layout from explicit hazard sets, validating every index.
// It is used to restore journaled sessions and to pin boards in tests.
func NewLayout(topology Topology, slots int, hazards [][]int) (Layout, error) {
	if !topology.Valid() {
		return Layout{}, fmt.Errorf("%w: %q", ErrUnknownTopology, topology)
	}
	if len(hazards) == 0 {
		return Layout{}, ErrNoDecisions
	}
	if topology == Flat && len(hazards) != 1 {
		return Layout{}, fmt.Errorf("flat layout must have exactly one hazard set, got %d", len(hazards))
	}

	l := Layout{
		topology: topology,
		slots:    slots,
		hazards:  make([][]int, len(hazards)),
		lookup:   make([]map[int]struct{}, len(hazards)),
	}
	for i, set := range hazards {
		if len(set) < 1 {
			return Layout{}, ErrNoHazards
		}
		if len(set) >= slots {
			return Layout{}, fmt.Errorf("%w: level %d", ErrTooManyHazards, i)
		}
		m := make(map[int]struct{}, len(set))
		for _, h := range set {
			if h < 0 || h >= slots {
				return Layout{}, fmt.Errorf("hazard %d out of range [0,%d) on level %d", h, slots, i)
			}
			if _, dup := m[h]; dup {
				return Layout{}, fmt.Errorf("duplicate hazard %d on level %d", h, i)
			}
			m[h] = struct{}{}
		}
		sorted := slices.Clone(set)
		slices.Sort(sorted)
		l.hazards[i] = sorted
		l.lookup[i] = m
	}
	return l, nil
}

// Topology returns the layout's topology.
func (l Layout) Topology() Topology { return l.topology }

// Slots returns the number of slots per decision point.
func (l Layout) Slots() int { return l.slots }

// Levels returns the number of hazard sets.
func (l Layout) Levels() int { return len(l.hazards) }

// IsHazard reports whether slot on the given level is a hazard.
func (l Layout) IsHazard(level, slot int) bool {
	if level < 0 || level >= len(l.lookup) {
		return false
	}
	_, ok := l.lookup[level][slot]
	return ok
}

// Hazards returns a copy of the hazard sets.
func (l Layout) Hazards() [][]int {
	out := make([][]int, len(l.hazards))
	for i, set := range l.hazards {
		out[i] = slices.Clone(set)
	}
	return out
}
