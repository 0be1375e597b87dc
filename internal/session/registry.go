package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Sardor8866/festery/internal/game"
	"github.com/Sardor8866/festery/internal/game/board"
	"github.com/Sardor8866/festery/internal/ledger"
	"github.com/Sardor8866/festery/internal/model"
	"github.com/Sardor8866/festery/internal/pkg/lock"
)

// StartRequest asks for a new session. Topology is optional; when set it
// must match the variant selected by Difficulty.
type StartRequest struct {
	UserID     int64
	Stake      int64
	Difficulty game.Difficulty
	Topology   board.Topology
}

// Registry owns the user → session map. It is the only place sessions are
// created, and it guarantees at most one registered session per user. A
// settling session stays registered until its credit is acknowledged.
type Registry struct {
	mu       sync.RWMutex
	sessions map[int64]*Session

	locks     *lock.UserLock
	ledger    ledger.Ledger
	retry     ledger.RetryPolicy
	// ctx bounds debit retries; it is the engine's lifetime, not the request's.
	ctx       context.Context
	games     *game.Registry
	generator *board.Generator
	journal   Journal
	watchdog  *Watchdog
	now       func() time.Time
}

func newRegistry(ctx context.Context, l ledger.Ledger, retry ledger.RetryPolicy, games *game.Registry, gen *board.Generator, j Journal, w *Watchdog, now func() time.Time) *Registry {
	return &Registry{
		sessions:  make(map[int64]*Session),
		locks:     lock.NewUserLock(),
		ledger:    l,
		retry:     retry,
		ctx:       ctx,
		games:     games,
		generator: gen,
		journal:   j,
		watchdog:  w,
		now:       now,
	}
}

// StartSession debits the stake, generates the board and registers an active
// session with its watchdog armed. On any failure nothing is registered and
// no stake is kept.
func (r *Registry) StartSession(ctx context.Context, req StartRequest) (*Session, error) {
	if err := r.locks.LockContext(ctx, req.UserID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBusy, err)
	}
	defer r.locks.Unlock(req.UserID)

	if r.GetActive(req.UserID) != nil {
		return nil, ErrAlreadyActive
	}

	variant, err := r.games.Resolve(req.Difficulty)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDifficulty, err)
	}
	if req.Topology != "" && req.Topology != variant.Topology() {
		return nil, fmt.Errorf("%w: %s is %s, not %s", ErrInvalidDifficulty, variant.Command(), variant.Topology(), req.Topology)
	}
	if err := variant.ValidateBet(req.Stake); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidStake, err)
	}

	spec, err := r.games.Board(req.Difficulty)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDifficulty, err)
	}
	table, err := r.games.Table(req.Difficulty)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDifficulty, err)
	}
	layout, err := r.generator.Generate(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDifficulty, err)
	}

	s := newSession(req.UserID, req.Stake, req.Difficulty, layout, table, r.now())

	if err := r.journal.Started(ctx, s.record()); err != nil {
		return nil, fmt.Errorf("failed to journal session: %w", err)
	}

	ref := ledger.Ref{SessionID: s.ID, Game: req.Difficulty.Game, Entry: model.EntryStake}
	err = r.ledger.Debit(ctx, req.UserID, req.Stake, ref)
	if err != nil && !ledger.Refused(err) {
		// The debit may have landed with its acknowledgement lost. Replaying
		// the same ref settles which.
		log.Warn().Err(err).Str("session_id", s.ID.String()).Msg("Stake debit outcome unknown")
		err = ledger.DebitWithRetry(r.ctx, r.ledger, req.UserID, req.Stake, ref, r.retry)
	}
	if err != nil {
		if ledger.Refused(err) {
			if jerr := r.journal.Aborted(ctx, s.ID); jerr != nil {
				log.Warn().Err(jerr).Str("session_id", s.ID.String()).Msg("Failed to journal aborted session")
			}
			if errors.Is(err, ledger.ErrInsufficientFunds) {
				return nil, ErrInsufficientFunds
			}
			return nil, fmt.Errorf("failed to debit stake: %w", err)
		}
		// Still unresolved when the engine shut down; the journal row stays
		// open so recovery refunds the stake if it was taken.
		return nil, fmt.Errorf("%w: failed to debit stake: %w", ErrEngineClosed, err)
	}

	// Timeout takes s.mu first, so a timer cannot act on s before it is
	// registered, and a reveal cannot settle it before it is armed.
	s.mu.Lock()
	r.watchdog.Arm(s)
	r.insert(s)
	s.mu.Unlock()
	return s, nil
}

// GetActive returns the user's registered session, or nil.
func (r *Registry) GetActive(userID int64) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[userID]
}

// Remove drops the user's session if it is still the one with id. Removing
// twice is a no-op.
func (r *Registry) Remove(userID int64, id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[userID]; ok && s.ID == id {
		delete(r.sessions, userID)
	}
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// List returns a snapshot of the registered sessions.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

func (r *Registry) insert(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.UserID] = s
}

func (s *Session) record() Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := Record{
		ID:         s.ID,
		UserID:     s.UserID,
		Difficulty: s.Difficulty,
		Stake:      s.Stake,
		Hazards:    s.layout.Hazards(),
		Progress:   s.progress,
		State:      s.state,
		CreatedAt:  s.CreatedAt,
	}
	if s.state == StateSettling || s.state.Terminal() {
		rec.Target = s.target
		rec.Credit = s.credit
	}
	return rec
}
