// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Sardor8866/festery/internal/model"
	"github.com/Sardor8866/festery/internal/repository"
)

// Common errors for account operations.
var (
	ErrInvalidAmount = errors.New("invalid amount: must be positive")
	ErrUserNotFound  = errors.New("user not found")
)

// UserStore is the user storage used by the services.
type UserStore interface {
	GetOrCreate(ctx context.Context, userID int64) (*model.User, bool, error)
	GetByID(ctx context.Context, userID int64) (*model.User, error)
	GetTopUsers(ctx context.Context, limit int) ([]*model.User, error)
}

// BalanceAdjuster records non-game balance movements.
type BalanceAdjuster interface {
	Adjust(ctx context.Context, userID, amount int64, txType string, description *string) (*model.User, error)
}

// HistoryStore lists a user's transactions.
type HistoryStore interface {
	GetByUserID(ctx context.Context, userID int64, limit int) ([]*model.Transaction, error)
}

// AccountService handles user account operations.
type AccountService struct {
	users   UserStore
	ledger  BalanceAdjuster
	history HistoryStore
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(users UserStore, ledger BalanceAdjuster, history HistoryStore) *AccountService {
	return &AccountService{
		users:   users,
		ledger:  ledger,
		history: history,
	}
}

// EnsureUser ensures a user exists, creating one with a zero balance if
// necessary. Returns the user and whether it was newly created.
func (s *AccountService) EnsureUser(ctx context.Context, userID int64) (*model.User, bool, error) {
	user, created, err := s.users.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to ensure user: %w", err)
	}
	if created {
		log.Info().Int64("user_id", userID).Msg("User created")
	}
	return user, created, nil
}

// GetBalance retrieves a user's current balance.
func (s *AccountService) GetBalance(ctx context.Context, userID int64) (int64, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.Balance, nil
}

// GetUser retrieves a user by id.
func (s *AccountService) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// History returns the user's latest transactions.
func (s *AccountService) History(ctx context.Context, userID int64, limit int) ([]*model.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	txs, err := s.history.GetByUserID(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	return txs, nil
}

// AdminCredit adds amount to a user's balance on behalf of an admin. The
// user is created if it does not exist yet.
func (s *AccountService) AdminCredit(ctx context.Context, adminID, userID, amount int64) (*model.User, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if _, _, err := s.EnsureUser(ctx, userID); err != nil {
		return nil, err
	}

	desc := fmt.Sprintf("admin %d credit", adminID)
	user, err := s.ledger.Adjust(ctx, userID, amount, model.TxTypeAdminAdd, &desc)
	if err != nil {
		return nil, fmt.Errorf("failed to credit user: %w", err)
	}

	log.Info().
		Int64("admin_id", adminID).
		Int64("user_id", userID).
		Int64("amount", amount).
		Int64("balance", user.Balance).
		Msg("Admin credited balance")
	return user, nil
}
