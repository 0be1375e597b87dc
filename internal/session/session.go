// Package session implements the progressive wager session engine: the
// registry of active sessions, the settlement state machine, and the
// inactivity watchdog that refunds abandoned sessions.
package session

import (
	"math"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Sardor8866/festery/internal/game"
	"github.com/Sardor8866/festery/internal/game/board"
)

// Pick is one reveal made by the player.
type Pick struct {
	DecisionPoint int  `json:"decision_point"`
	Slot          int  `json:"slot"`
	Hazard        bool `json:"hazard"`
}

// Session is one player's progressive wager from stake to settlement. The
// exported fields are fixed at creation; everything else is guarded by mu
// and only mutated by the engine.
type Session struct {
	ID         uuid.UUID
	UserID     int64
	Stake      int64
	Difficulty game.Difficulty
	Topology   board.Topology
	CreatedAt  time.Time

	mu           sync.Mutex
	layout       board.Layout
	table        []float64
	progress     int
	revealed     [][]bool
	picks        []Pick
	state        State
	target       State
	credit       int64
	lastActivity time.Time
	settledAt    time.Time
}

func newSession(userID, stake int64, d game.Difficulty, layout board.Layout, table []float64, now time.Time) *Session {
	revealed := make([][]bool, layout.Levels())
	for i := range revealed {
		revealed[i] = make([]bool, layout.Slots())
	}

	return &Session{
		ID:           uuid.New(),
		UserID:       userID,
		Stake:        stake,
		Difficulty:   d,
		Topology:     layout.Topology(),
		CreatedAt:    now,
		layout:       layout,
		table:        slices.Clone(table),
		revealed:     revealed,
		state:        StateActive,
		lastActivity: now,
	}
}

// payout converts a multiplier into minor units, rounding half away from zero.
func payout(stake int64, multiplier float64) int64 {
	return int64(math.Round(float64(stake) * multiplier))
}

// currentMultiplier is the multiplier earned so far; 1.0 before the first step.
func (s *Session) currentMultiplier() float64 {
	if s.progress == 0 {
		return 1.0
	}
	return s.table[s.progress-1]
}

// nextMultiplier previews the next step, or 0 when none is left.
func (s *Session) nextMultiplier() float64 {
	if s.progress >= len(s.table) {
		return 0
	}
	return s.table[s.progress]
}

// touch records player activity.
func (s *Session) touch(now time.Time) {
	s.lastActivity = now
}

// levelFor maps a decision point onto a hazard set. A flat board has a
// single set; every cleared step reveals another slot of it.
func (s *Session) levelFor(decisionPoint int) (int, bool) {
	switch s.Topology {
	case board.Flat:
		return 0, decisionPoint == 0
	case board.Layered:
		return decisionPoint, decisionPoint == s.progress
	}
	return 0, false
}

// beginSettling moves an active session into settling with the given target.
func (s *Session) beginSettling(target State, credit int64) {
	s.state = StateSettling
	s.target = target
	s.credit = credit
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Progress returns the number of cleared decision points.
func (s *Session) Progress() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// LastActivity returns the time of the latest player action.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// View returns a presentation snapshot of the session.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// SlotView is one cell of a rendered board. Hazard is only ever true for a
// revealed slot, or for any slot once the outcome is decided.
type SlotView struct {
	Revealed bool `json:"revealed"`
	Hazard   bool `json:"hazard"`
}

// View is what a presentation layer may see of a session. It never carries
// unrevealed hazard positions while the session is active.
type View struct {
	ID                uuid.UUID      `json:"id"`
	UserID            int64          `json:"user_id"`
	Game              string         `json:"game"`
	Level             int            `json:"level"`
	Topology          board.Topology `json:"topology"`
	Stake             int64          `json:"stake"`
	State             State          `json:"state"`
	Progress          int            `json:"progress"`
	DecisionPoints    int            `json:"decision_points"`
	CurrentMultiplier float64        `json:"current_multiplier"`
	NextMultiplier    float64        `json:"next_multiplier"`
	Board             [][]SlotView   `json:"board"`
	Picks             []Pick         `json:"picks"`
	Outcome           OutcomeKind    `json:"outcome,omitempty"`
	Credited          *int64         `json:"credited,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	LastActivityAt    time.Time      `json:"last_activity_at"`
	SettledAt         *time.Time     `json:"settled_at,omitempty"`
	Recovered         bool           `json:"recovered,omitempty"` // finished by crash recovery; no board
}

func (s *Session) viewLocked() View {
	decided := s.state != StateActive

	rows := make([][]SlotView, len(s.revealed))
	for level, slots := range s.revealed {
		row := make([]SlotView, len(slots))
		for slot, open := range slots {
			row[slot] = SlotView{
				Revealed: open,
				Hazard:   s.layout.IsHazard(level, slot) && (open || decided),
			}
		}
		rows[level] = row
	}

	v := View{
		ID:                s.ID,
		UserID:            s.UserID,
		Game:              s.Difficulty.Game,
		Level:             s.Difficulty.Level,
		Topology:          s.Topology,
		Stake:             s.Stake,
		State:             s.state,
		Progress:          s.progress,
		DecisionPoints:    len(s.table),
		CurrentMultiplier: s.currentMultiplier(),
		NextMultiplier:    s.nextMultiplier(),
		Board:             rows,
		Picks:             slices.Clone(s.picks),
		CreatedAt:         s.CreatedAt,
		LastActivityAt:    s.lastActivity,
	}
	if s.state.Terminal() {
		credited := s.credit
		settledAt := s.settledAt
		v.Outcome = outcomeFor(s.state)
		v.Credited = &credited
		v.SettledAt = &settledAt
		v.NextMultiplier = 0
	}
	return v
}

// Outcome is the result of one engine operation. Terminal outcomes carry the
// amount already committed to the ledger.
type Outcome struct {
	Kind           OutcomeKind `json:"kind"`
	SessionID      uuid.UUID   `json:"session_id"`
	Progress       int         `json:"progress"`
	Multiplier     float64     `json:"multiplier"`
	NextMultiplier float64     `json:"next_multiplier"`
	Credited       int64       `json:"credited"`
	View           View        `json:"view"`
}

// Terminal reports whether the outcome ended the session.
func (o Outcome) Terminal() bool {
	return o.Kind != OutcomeAdvanced
}
