package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Sardor8866/festery/internal/model"
)

// Referral repository errors.
var (
	ErrAlreadyReferred   = errors.New("referrer already registered")
	ErrSelfReferral      = errors.New("cannot refer yourself")
	ErrNothingToWithdraw = errors.New("referral balance is empty")
)

// ReferralRepository handles referral links and commission balances.
type ReferralRepository struct {
	pool *pgxpool.Pool
}

// NewReferralRepository creates a new ReferralRepository instance.
func NewReferralRepository(pool *pgxpool.Pool) *ReferralRepository {
	return &ReferralRepository{pool: pool}
}

// Register links userID to referrerID. A user may be linked only once.
func (r *ReferralRepository) Register(ctx context.Context, userID, referrerID int64) error {
	if userID == referrerID {
		return ErrSelfReferral
	}

	const query = `
		INSERT INTO referral_accounts (user_id, referrer_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET referrer_id = EXCLUDED.referrer_id
		WHERE referral_accounts.referrer_id IS NULL
		RETURNING user_id
	`

	var id int64
	err := r.pool.QueryRow(ctx, query, userID, referrerID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAlreadyReferred
		}
		return fmt.Errorf("failed to register referral: %w", err)
	}
	return nil
}

// GetReferrer returns who referred userID, or nil.
func (r *ReferralRepository) GetReferrer(ctx context.Context, userID int64) (*int64, error) {
	const query = `SELECT referrer_id FROM referral_accounts WHERE user_id = $1`

	var referrer *int64
	err := r.pool.QueryRow(ctx, query, userID).Scan(&referrer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get referrer: %w", err)
	}
	return referrer, nil
}

// Accrue adds commission to a referrer's referral balance.
func (r *ReferralRepository) Accrue(ctx context.Context, referrerID, amount int64) error {
	const query = `
		INSERT INTO referral_accounts (user_id, ref_balance, total_earned, created_at)
		VALUES ($1, $2, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET ref_balance = referral_accounts.ref_balance + EXCLUDED.ref_balance,
		    total_earned = referral_accounts.total_earned + EXCLUDED.total_earned
	`

	if _, err := r.pool.Exec(ctx, query, referrerID, amount); err != nil {
		return fmt.Errorf("failed to accrue referral commission: %w", err)
	}
	return nil
}

// Get returns a user's referral account. Users without a row get an empty
// account.
func (r *ReferralRepository) Get(ctx context.Context, userID int64) (*model.ReferralAccount, error) {
	const query = `
		SELECT a.user_id, a.referrer_id, a.ref_balance, a.total_earned, a.total_withdrawn,
		       (SELECT COUNT(*) FROM referral_accounts c WHERE c.referrer_id = a.user_id),
		       a.created_at
		FROM referral_accounts a
		WHERE a.user_id = $1
	`

	var acc model.ReferralAccount
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&acc.UserID,
		&acc.ReferrerID,
		&acc.RefBalance,
		&acc.TotalEarned,
		&acc.TotalWithdrawn,
		&acc.Referrals,
		&acc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &model.ReferralAccount{UserID: userID}, nil
		}
		return nil, fmt.Errorf("failed to get referral account: %w", err)
	}
	return &acc, nil
}

// Withdraw moves the whole referral balance into the main balance and
// returns the amount moved.
func (r *ReferralRepository) Withdraw(ctx context.Context, userID int64) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var amount int64
	err = tx.QueryRow(ctx,
		`SELECT ref_balance FROM referral_accounts WHERE user_id = $1 FOR UPDATE`, userID,
	).Scan(&amount)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("failed to lock referral account: %w", err)
	}
	if amount <= 0 {
		return 0, ErrNothingToWithdraw
	}

	const update = `
		UPDATE referral_accounts
		SET ref_balance = 0, total_withdrawn = total_withdrawn + $2
		WHERE user_id = $1
	`
	if _, err := tx.Exec(ctx, update, userID, amount); err != nil {
		return 0, fmt.Errorf("failed to reset referral balance: %w", err)
	}

	desc := "referral balance withdrawal"
	if _, err := adjustTx(ctx, tx, userID, amount, model.TxTypeReferralWithdraw, &desc); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit withdrawal: %w", err)
	}
	return amount, nil
}
