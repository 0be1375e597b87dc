package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// RetryPolicy shapes the exponential backoff between credit attempts.
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy is used when a policy field is zero.
var DefaultRetryPolicy = RetryPolicy{
	InitialInterval: 200 * time.Millisecond,
	MaxInterval:     30 * time.Second,
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	if b.InitialInterval <= 0 {
		b.InitialInterval = DefaultRetryPolicy.InitialInterval
	}
	b.MaxInterval = p.MaxInterval
	if b.MaxInterval <= 0 {
		b.MaxInterval = DefaultRetryPolicy.MaxInterval
	}
	// Never give up on elapsed time; only ctx ends the loop.
	b.MaxElapsedTime = 0
	return backoff.WithContext(b, ctx)
}

// CreditWithRetry calls Credit until the ledger acknowledges it or ctx is
// done. onRetry, if set, is called after every failed attempt. The ledger's
// per-session idempotency makes a retried credit safe even if an earlier
// attempt landed but its acknowledgement was lost.
func CreditWithRetry(ctx context.Context, l Ledger, userID, amount int64, ref Ref, policy RetryPolicy, onRetry func(err error, next time.Duration)) error {
	op := func() error {
		err := l.Credit(ctx, userID, amount, ref)
		if errors.Is(err, ErrInvalidAmount) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		log.Warn().
			Err(err).
			Int64("user_id", userID).
			Str("session_id", ref.SessionID.String()).
			Int64("amount", amount).
			Dur("retry_in", next).
			Msg("Ledger credit failed, retrying")
		if onRetry != nil {
			onRetry(err, next)
		}
	}

	if err := backoff.RetryNotify(op, policy.backOff(ctx), notify); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

// DebitWithRetry calls Debit until the ledger gives a definite answer: nil
// once the debit is on record, or ErrInsufficientFunds, ErrUnknownAccount
// or ErrInvalidAmount when it was refused. A debit whose earlier attempt
// landed is acknowledged by the replay, so an error from a lost
// acknowledgement resolves to nil instead of a second debit.
func DebitWithRetry(ctx context.Context, l Ledger, userID, amount int64, ref Ref, policy RetryPolicy) error {
	op := func() error {
		err := l.Debit(ctx, userID, amount, ref)
		if Refused(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		log.Warn().
			Err(err).
			Int64("user_id", userID).
			Str("session_id", ref.SessionID.String()).
			Int64("amount", amount).
			Dur("retry_in", next).
			Msg("Ledger debit outcome unknown, retrying")
	}

	if err := backoff.RetryNotify(op, policy.backOff(ctx), notify); err != nil {
		if Refused(err) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

// Refused reports whether err is a definite refusal: the ledger did not
// move any funds and will not on a retry.
func Refused(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrUnknownAccount) ||
		errors.Is(err, ErrInvalidAmount)
}
