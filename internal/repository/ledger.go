package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Sardor8866/festery/internal/model"
)

// LedgerRepository applies balance movements together with their
// transaction record in a single database transaction.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a new LedgerRepository instance.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// SessionEntry is one game movement. Amount is signed: negative for a debit.
type SessionEntry struct {
	UserID    int64
	Amount    int64
	Type      string
	SessionID uuid.UUID
	Direction int16
}

// ApplySessionEntry records a game entry and moves the balance. It reports
// false without touching the balance when the same (session, direction)
// entry was already applied. A debit that would overdraw the balance fails
// with ErrInsufficientBalance and leaves nothing behind.
func (r *LedgerRepository) ApplySessionEntry(ctx context.Context, e SessionEntry) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insert = `
		INSERT INTO transactions (user_id, amount, type, session_id, direction, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (session_id, direction) WHERE session_id IS NOT NULL DO NOTHING
		RETURNING id
	`

	var id int64
	err = tx.QueryRow(ctx, insert, e.UserID, e.Amount, e.Type, e.SessionID, e.Direction).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, ErrUserNotFound
		}
		return false, fmt.Errorf("failed to record session entry: %w", err)
	}

	if _, err := moveBalance(ctx, tx, e.UserID, e.Amount); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit session entry: %w", err)
	}
	return true, nil
}

// Adjust records a non-game movement (admin credit, referral withdrawal)
// and moves the balance.
func (r *LedgerRepository) Adjust(ctx context.Context, userID, amount int64, txType string, description *string) (*model.User, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	user, err := adjustTx(ctx, tx, userID, amount, txType, description)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit adjustment: %w", err)
	}
	return user, nil
}

func adjustTx(ctx context.Context, tx pgx.Tx, userID, amount int64, txType string, description *string) (*model.User, error) {
	const insert = `
		INSERT INTO transactions (user_id, amount, type, description, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`
	if _, err := tx.Exec(ctx, insert, userID, amount, txType, description); err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return moveBalance(ctx, tx, userID, amount)
}

// moveBalance adds amount to the balance unless it would go negative.
func moveBalance(ctx context.Context, tx pgx.Tx, userID, amount int64) (*model.User, error) {
	const update = `
		UPDATE users
		SET balance = balance + $2, updated_at = NOW()
		WHERE user_id = $1 AND balance + $2 >= 0
		RETURNING user_id, balance, created_at, updated_at
	`

	user, err := scanUser(tx.QueryRow(ctx, update, userID, amount))
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE user_id = $1)`, userID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check user existence: %w", err)
	}
	if !exists {
		return nil, ErrUserNotFound
	}
	return nil, ErrInsufficientBalance
}

// Balance returns the user's balance.
func (r *LedgerRepository) Balance(ctx context.Context, userID int64) (int64, error) {
	var balance int64
	err := r.pool.QueryRow(ctx, `SELECT balance FROM users WHERE user_id = $1`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}
