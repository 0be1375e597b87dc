package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Sardor8866/festery/internal/ledger"
)

// RecoveryReport summarizes one Recover run.
type RecoveryReport struct {
	Refunded int // sessions left active, stake returned
	Settled  int // sessions left settling, recorded credit paid
}

// Recover finishes sessions a previous process left open. Active sessions
// are refunded in full; settling sessions are paid the amount they had
// already been promised. It should run before the engine accepts actions.
func (e *Engine) Recover(ctx context.Context) (RecoveryReport, error) {
	var report RecoveryReport

	recs, err := e.journal.Pending(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to load pending sessions: %w", err)
	}

	var errs []error
	for _, rec := range recs {
		target, credit := StateRefunded, rec.Stake
		if rec.State == StateSettling {
			target, credit = rec.Target, rec.Credit
		}

		if err := e.recoverOne(ctx, rec, target, credit); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", rec.ID, err))
			continue
		}
		if rec.State == StateSettling {
			report.Settled++
		} else {
			report.Refunded++
		}
	}

	if len(recs) > 0 {
		log.Info().
			Int("refunded", report.Refunded).
			Int("settled", report.Settled).
			Int("failed", len(errs)).
			Msg("Recovered open sessions")
	}
	return report, errors.Join(errs...)
}

func (e *Engine) recoverOne(ctx context.Context, rec Record, target State, credit int64) error {
	if !e.enter() {
		return ErrEngineClosed
	}
	defer e.wg.Done()

	if rec.State == StateActive {
		if err := e.journal.Settling(ctx, rec.ID, rec.Progress, target, credit); err != nil {
			log.Warn().Err(err).Str("session_id", rec.ID.String()).Msg("Failed to journal settling")
		}
	}

	ref := ledger.Ref{SessionID: rec.ID, Game: rec.Difficulty.Game, Entry: target.entry()}
	if err := ledger.CreditWithRetry(e.ctx, e.ledger, rec.UserID, credit, ref, e.cfg.CreditRetry, nil); err != nil {
		return fmt.Errorf("%w: %w", ErrSettlementPending, err)
	}
	if err := e.journal.Settled(ctx, rec.ID, target, credit); err != nil {
		return fmt.Errorf("failed to journal settlement: %w", err)
	}

	log.Info().
		Int64("user_id", rec.UserID).
		Str("session_id", rec.ID.String()).
		Str("state", string(target)).
		Int64("credited", credit).
		Msg("Session recovered")

	v := View{
		ID:                rec.ID,
		UserID:            rec.UserID,
		Game:              rec.Difficulty.Game,
		Level:             rec.Difficulty.Level,
		Stake:             rec.Stake,
		State:             target,
		Progress:          rec.Progress,
		CurrentMultiplier: 1,
		Outcome:           outcomeFor(target),
		Credited:          &credit,
		CreatedAt:         rec.CreatedAt,
		Recovered:         true,
	}
	out := Outcome{
		Kind:      outcomeFor(target),
		SessionID: rec.ID,
		Progress:  rec.Progress,
		Credited:  credit,
		View:      v,
	}
	for _, o := range e.observers {
		o.SessionSettled(ctx, v, out)
	}
	return nil
}
