package board

import "sync"

// Generator produces hazard layouts.
type Generator struct {
	src Source
	mu  sync.Mutex // seeded sources are not safe for concurrent use
}

// NewGenerator creates a generator over src. A nil src uses CryptoSource.
func NewGenerator(src Source) *Generator {
	if src == nil {
		src = CryptoSource()
	}
	return &Generator{src: src}
}

// Generate draws a layout for spec. Flat boards get one draw; layered boards
// get one independent draw per decision point.
func (g *Generator) Generate(spec Spec) (Layout, error) {
	if err := spec.Validate(); err != nil {
		return Layout{}, err
	}

	sets := 1
	if spec.Topology == Layered {
		sets = spec.DecisionPoints
	}

	hazards := make([][]int, sets)
	g.mu.Lock()
	for i := range hazards {
		hazards[i] = g.draw(spec.Slots, spec.Hazards)
	}
	g.mu.Unlock()

	return NewLayout(spec.Topology, spec.Slots, hazards)
}

// draw picks k distinct indices out of n with a partial Fisher-Yates shuffle.
func (g *Generator) draw(n, k int) []int {
	pool := make([]int, n)
	for i := range pool {
		pool[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + g.src.IntN(n-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k]
}
