package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Sardor8866/festery/internal/model"
	"github.com/Sardor8866/festery/internal/repository"
	"github.com/Sardor8866/festery/internal/session"
)

// Referral errors.
var (
	ErrAlreadyReferred   = errors.New("referrer already set")
	ErrSelfReferral      = errors.New("cannot refer yourself")
	ErrUnknownReferrer   = errors.New("referrer not found")
	ErrNothingToWithdraw = errors.New("referral balance is empty")
)

// ReferralStore is the referral account storage.
type ReferralStore interface {
	Register(ctx context.Context, userID, referrerID int64) error
	GetReferrer(ctx context.Context, userID int64) (*int64, error)
	Accrue(ctx context.Context, referrerID, amount int64) error
	Get(ctx context.Context, userID int64) (*model.ReferralAccount, error)
	Withdraw(ctx context.Context, userID int64) (int64, error)
}

// ReferralService pays referrers a share of every stake their referrals
// place. The commission is paid by the house; the player's stake is
// untouched. It observes the session engine for accepted stakes.
type ReferralService struct {
	store   ReferralStore
	users   UserStore
	percent int64
}

var _ session.Observer = (*ReferralService)(nil)

// NewReferralService creates a new ReferralService instance.
func NewReferralService(store ReferralStore, users UserStore, percent int64) *ReferralService {
	if percent < 0 {
		percent = 0
	}
	return &ReferralService{store: store, users: users, percent: percent}
}

// Commission returns the referrer's share of stake, rounded down.
func (s *ReferralService) Commission(stake int64) int64 {
	return stake * s.percent / 100
}

// Register links userID to referrerID. A user may set a referrer once, and
// the referrer must already exist.
func (s *ReferralService) Register(ctx context.Context, userID, referrerID int64) error {
	if userID == referrerID {
		return ErrSelfReferral
	}
	if _, err := s.users.GetByID(ctx, referrerID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUnknownReferrer
		}
		return fmt.Errorf("failed to check referrer: %w", err)
	}

	if err := s.store.Register(ctx, userID, referrerID); err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadyReferred):
			return ErrAlreadyReferred
		case errors.Is(err, repository.ErrSelfReferral):
			return ErrSelfReferral
		}
		return fmt.Errorf("failed to register referral: %w", err)
	}

	log.Info().Int64("user_id", userID).Int64("referrer_id", referrerID).Msg("Referral registered")
	return nil
}

// Get returns the user's referral account.
func (s *ReferralService) Get(ctx context.Context, userID int64) (*model.ReferralAccount, error) {
	acc, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get referral account: %w", err)
	}
	return acc, nil
}

// Withdraw moves the whole referral balance into the main balance.
func (s *ReferralService) Withdraw(ctx context.Context, userID int64) (int64, error) {
	amount, err := s.store.Withdraw(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNothingToWithdraw) {
			return 0, ErrNothingToWithdraw
		}
		if errors.Is(err, repository.ErrUserNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to withdraw referral balance: %w", err)
	}

	log.Info().Int64("user_id", userID).Int64("amount", amount).Msg("Referral balance withdrawn")
	return amount, nil
}

// SessionStarted accrues the commission on an accepted stake. Failures are
// logged; they never affect the session.
func (s *ReferralService) SessionStarted(ctx context.Context, v session.View) {
	commission := s.Commission(v.Stake)
	if commission <= 0 {
		return
	}

	ctx = context.WithoutCancel(ctx)
	referrer, err := s.store.GetReferrer(ctx, v.UserID)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", v.UserID).Msg("Failed to look up referrer")
		return
	}
	if referrer == nil {
		return
	}

	if err := s.store.Accrue(ctx, *referrer, commission); err != nil {
		log.Warn().
			Err(err).
			Int64("referrer_id", *referrer).
			Str("session_id", v.ID.String()).
			Int64("commission", commission).
			Msg("Failed to accrue referral commission")
		return
	}
	log.Debug().
		Int64("referrer_id", *referrer).
		Int64("user_id", v.UserID).
		Int64("commission", commission).
		Msg("Referral commission accrued")
}

// SessionSettled does nothing; commission is earned on the stake alone.
func (s *ReferralService) SessionSettled(context.Context, session.View, session.Outcome) {}
