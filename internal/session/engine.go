package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Sardor8866/festery/internal/game"
	"github.com/Sardor8866/festery/internal/game/board"
	"github.com/Sardor8866/festery/internal/ledger"
)

// DefaultInactivityTimeout is used when Config leaves it unset.
const DefaultInactivityTimeout = 5 * time.Minute

// Config holds engine settings.
type Config struct {
	InactivityTimeout time.Duration
	CreditRetry       ledger.RetryPolicy
}

// Deps are the engine's collaborators. Generator and Journal are optional.
type Deps struct {
	Ledger    ledger.Ledger
	Games     *game.Registry
	Generator *board.Generator
	Journal   Journal
	Observers []Observer
	Now       func() time.Time
}

// Engine drives sessions from creation through reveals to a terminal
// outcome, and owns every ledger call a session makes. Player actions and
// watchdog timeouts meet in the same per-session critical section.
type Engine struct {
	cfg       Config
	ledger    ledger.Ledger
	games     *game.Registry
	journal   Journal
	observers []Observer
	now       func() time.Time

	registry *Registry
	watchdog *Watchdog

	// ctx bounds credit retries; it outlives any single request.
	ctx    context.Context
	cancel context.CancelFunc

	// mu orders wg.Add against Close's wg.Wait.
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewEngine creates an engine.
func NewEngine(cfg Config, deps Deps) *Engine {
	if cfg.InactivityTimeout <= 0 {
		cfg.InactivityTimeout = DefaultInactivityTimeout
	}
	if deps.Generator == nil {
		deps.Generator = board.NewGenerator(nil)
	}
	if deps.Journal == nil {
		deps.Journal = NopJournal{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:       cfg,
		ledger:    deps.Ledger,
		games:     deps.Games,
		journal:   deps.Journal,
		observers: deps.Observers,
		now:       deps.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
	e.watchdog = NewWatchdog(cfg.InactivityTimeout, e.onWatchdog)
	e.registry = newRegistry(ctx, deps.Ledger, cfg.CreditRetry, deps.Games, deps.Generator, deps.Journal, e.watchdog, deps.Now)
	return e
}

// Registry returns the session registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Watchdog returns the inactivity watchdog.
func (e *Engine) Watchdog() *Watchdog {
	return e.watchdog
}

// Start opens a session for the user.
func (e *Engine) Start(ctx context.Context, req StartRequest) (View, error) {
	if e.ctx.Err() != nil {
		return View{}, ErrEngineClosed
	}

	s, err := e.registry.StartSession(ctx, req)
	if err != nil {
		return View{}, err
	}

	v := s.View()
	log.Info().
		Int64("user_id", s.UserID).
		Str("session_id", s.ID.String()).
		Str("game", s.Difficulty.Game).
		Int("level", s.Difficulty.Level).
		Int64("stake", s.Stake).
		Msg("Session started")

	for _, o := range e.observers {
		o.SessionStarted(ctx, v)
	}
	return v, nil
}

// Active returns the view of the user's session.
func (e *Engine) Active(userID int64) (View, error) {
	s := e.registry.GetActive(userID)
	if s == nil {
		return View{}, ErrNoActiveSession
	}
	return s.View(), nil
}

// Reveal opens a slot at a decision point of the user's session.
func (e *Engine) Reveal(ctx context.Context, userID int64, decisionPoint, slot int) (Outcome, error) {
	s := e.registry.GetActive(userID)
	if s == nil {
		return Outcome{}, ErrNoActiveSession
	}

	s.mu.Lock()
	e.noteActivity(s)

	switch s.state {
	case StateActive:
	case StateSettling:
		s.mu.Unlock()
		return Outcome{}, fmt.Errorf("%w: %w", ErrInvalidMove, ErrSettlementPending)
	default:
		s.mu.Unlock()
		return Outcome{}, fmt.Errorf("%w: session is %s", ErrInvalidMove, s.state)
	}

	level, ok := s.levelFor(decisionPoint)
	if !ok {
		s.mu.Unlock()
		return Outcome{}, fmt.Errorf("%w: decision point %d is not the frontier", ErrInvalidMove, decisionPoint)
	}
	if slot < 0 || slot >= s.layout.Slots() {
		s.mu.Unlock()
		return Outcome{}, fmt.Errorf("%w: slot %d out of range", ErrInvalidMove, slot)
	}
	if s.revealed[level][slot] {
		s.mu.Unlock()
		return Outcome{}, fmt.Errorf("%w: slot %d already revealed", ErrInvalidMove, slot)
	}

	hazard := s.layout.IsHazard(level, slot)
	s.revealed[level][slot] = true
	s.picks = append(s.picks, Pick{DecisionPoint: decisionPoint, Slot: slot, Hazard: hazard})

	if hazard {
		s.beginSettling(StateBusted, 0)
		progress := s.progress
		s.mu.Unlock()
		return e.settle(ctx, s, progress, true)
	}

	s.progress++
	if s.progress == len(s.table) {
		s.beginSettling(StateCleared, payout(s.Stake, s.currentMultiplier()))
		progress := s.progress
		s.mu.Unlock()
		return e.settle(ctx, s, progress, true)
	}

	out := Outcome{
		Kind:           OutcomeAdvanced,
		SessionID:      s.ID,
		Progress:       s.progress,
		Multiplier:     s.currentMultiplier(),
		NextMultiplier: s.nextMultiplier(),
		View:           s.viewLocked(),
	}
	s.mu.Unlock()

	if err := e.journal.Progressed(ctx, s.ID, out.Progress); err != nil {
		log.Warn().Err(err).Str("session_id", s.ID.String()).Msg("Failed to journal progress")
	}
	return out, nil
}

// CashOut settles the user's session at the current multiplier.
func (e *Engine) CashOut(ctx context.Context, userID int64) (Outcome, error) {
	s := e.registry.GetActive(userID)
	if s == nil {
		return Outcome{}, ErrNoActiveSession
	}

	s.mu.Lock()
	e.noteActivity(s)

	switch s.state {
	case StateActive:
	case StateSettling:
		s.mu.Unlock()
		return Outcome{}, ErrSettlementPending
	default:
		s.mu.Unlock()
		return Outcome{}, ErrNoActiveSession
	}
	if s.progress == 0 {
		s.mu.Unlock()
		return Outcome{}, ErrNothingToCashOut
	}

	s.beginSettling(StateCashedOut, payout(s.Stake, s.currentMultiplier()))
	progress := s.progress
	s.mu.Unlock()
	return e.settle(ctx, s, progress, true)
}

// Timeout refunds an abandoned session. It is only reached through the
// watchdog. For a session that is no longer active, or has seen activity
// since the timer was armed, it does nothing and returns a zero Outcome.
func (e *Engine) Timeout(s *Session) (Outcome, error) {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return Outcome{}, nil
	}
	idle := e.now().Sub(s.lastActivity)
	if remaining := e.cfg.InactivityTimeout - idle; remaining > 0 {
		e.watchdog.ArmAfter(s, remaining)
		s.mu.Unlock()
		return Outcome{}, nil
	}

	s.beginSettling(StateRefunded, s.Stake)
	progress := s.progress
	s.mu.Unlock()

	log.Info().
		Int64("user_id", s.UserID).
		Str("session_id", s.ID.String()).
		Dur("idle", idle).
		Msg("Session inactive, refunding stake")

	return e.settle(e.ctx, s, progress, true)
}

func (e *Engine) onWatchdog(s *Session) {
	if _, err := e.Timeout(s); err != nil {
		log.Error().Err(err).Str("session_id", s.ID.String()).Msg("Timeout settlement did not complete")
	}
}

// noteActivity must be called with s.mu held.
func (e *Engine) noteActivity(s *Session) {
	s.touch(e.now())
	e.watchdog.Reset(s)
}

// settle finishes a session that beginSettling has moved to settling: it
// credits the ledger until acknowledged, then records the terminal state and
// drops the session from the registry. journal is false when the settling
// row is already on record.
func (e *Engine) settle(ctx context.Context, s *Session, progress int, journal bool) (Outcome, error) {
	entered := e.enter()
	if entered {
		defer e.wg.Done()
	}

	e.watchdog.Cancel(s.ID)

	// The request may be gone before the credit lands; journal writes must
	// still happen.
	jctx := context.WithoutCancel(ctx)

	s.mu.Lock()
	target, credit := s.target, s.credit
	s.mu.Unlock()

	if journal {
		if err := e.journal.Settling(jctx, s.ID, progress, target, credit); err != nil {
			log.Warn().Err(err).Str("session_id", s.ID.String()).Msg("Failed to journal settling")
		}
	}
	if !entered {
		log.Warn().
			Int64("user_id", s.UserID).
			Str("session_id", s.ID.String()).
			Str("state", string(target)).
			Msg("Engine closed, session left settling")
		return Outcome{}, fmt.Errorf("%w: %w", ErrSettlementPending, ErrEngineClosed)
	}

	ref := ledger.Ref{SessionID: s.ID, Game: s.Difficulty.Game, Entry: target.entry()}
	err := ledger.CreditWithRetry(e.ctx, e.ledger, s.UserID, credit, ref, e.cfg.CreditRetry, func(error, time.Duration) {
		for _, o := range e.observers {
			if ro, ok := o.(RetryObserver); ok {
				ro.CreditRetried(s.Difficulty.Game)
			}
		}
	})
	if err != nil {
		log.Error().
			Err(err).
			Int64("user_id", s.UserID).
			Str("session_id", s.ID.String()).
			Int64("credit", credit).
			Msg("Settlement credit not acknowledged, session left settling")
		return Outcome{}, fmt.Errorf("%w: %w", ErrSettlementPending, err)
	}

	s.mu.Lock()
	s.state = target
	s.settledAt = e.now()
	v := s.viewLocked()
	multiplier := s.currentMultiplier()
	s.mu.Unlock()

	switch target {
	case StateBusted:
		multiplier = 0
	case StateRefunded:
		multiplier = 1
	}

	e.registry.Remove(s.UserID, s.ID)

	if err := e.journal.Settled(jctx, s.ID, target, credit); err != nil {
		log.Error().Err(err).Str("session_id", s.ID.String()).Msg("Failed to journal settlement")
	}

	out := Outcome{
		Kind:       outcomeFor(target),
		SessionID:  s.ID,
		Progress:   v.Progress,
		Multiplier: multiplier,
		Credited:   credit,
		View:       v,
	}
	log.Info().
		Int64("user_id", s.UserID).
		Str("session_id", s.ID.String()).
		Str("game", s.Difficulty.Game).
		Str("state", string(target)).
		Int("progress", v.Progress).
		Int64("stake", s.Stake).
		Int64("credited", credit).
		Msg("Session settled")

	for _, o := range e.observers {
		o.SessionSettled(jctx, v, out)
	}
	return out, nil
}

// Close stops the watchdog, aborts credit retries still in flight and waits
// for settlements to return. Sessions whose credit was not acknowledged stay
// settling in the journal.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.watchdog.Stop()
	e.cancel()
	e.wg.Wait()
}

// enter registers an in-flight settlement unless the engine is closed.
func (e *Engine) enter() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.wg.Add(1)
	return true
}

// IsPending reports whether err means a settlement is still owed.
func IsPending(err error) bool {
	return errors.Is(err, ErrSettlementPending)
}
