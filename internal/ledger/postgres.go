package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Sardor8866/festery/internal/model"
	"github.com/Sardor8866/festery/internal/repository"
)

// EntryStore is the storage the Postgres ledger writes through.
type EntryStore interface {
	ApplySessionEntry(ctx context.Context, e repository.SessionEntry) (bool, error)
	Balance(ctx context.Context, userID int64) (int64, error)
}

// Postgres is the durable ledger. Every call is one database transaction
// that writes the transaction record and moves the balance together.
type Postgres struct {
	store EntryStore
}

// NewPostgres creates a ledger over store.
func NewPostgres(store EntryStore) *Postgres {
	return &Postgres{store: store}
}

// GetBalance returns the user's balance.
func (p *Postgres) GetBalance(ctx context.Context, userID int64) (int64, error) {
	balance, err := p.store.Balance(ctx, userID)
	if err != nil {
		return 0, mapStoreError(err)
	}
	return balance, nil
}

// Debit takes a session stake.
func (p *Postgres) Debit(ctx context.Context, userID int64, amount int64, ref Ref) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	return p.apply(ctx, userID, -amount, model.DirectionDebit, ref)
}

// Credit pays a session settlement.
func (p *Postgres) Credit(ctx context.Context, userID int64, amount int64, ref Ref) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	return p.apply(ctx, userID, amount, model.DirectionCredit, ref)
}

func (p *Postgres) apply(ctx context.Context, userID, amount int64, direction int16, ref Ref) error {
	applied, err := p.store.ApplySessionEntry(ctx, repository.SessionEntry{
		UserID:    userID,
		Amount:    amount,
		Type:      model.GameTxType(ref.Game, ref.Entry),
		SessionID: ref.SessionID,
		Direction: direction,
	})
	if err != nil {
		return mapStoreError(err)
	}
	if !applied {
		log.Debug().
			Int64("user_id", userID).
			Str("ref", ref.String()).
			Msg("Ledger entry already applied")
	}
	return nil
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, repository.ErrInsufficientBalance):
		return ErrInsufficientFunds
	case errors.Is(err, repository.ErrUserNotFound):
		return fmt.Errorf("%w: %w", ErrUnknownAccount, err)
	default:
		return err
	}
}
