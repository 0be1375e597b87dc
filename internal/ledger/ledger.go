// Package ledger defines the balance ledger consumed by the session engine
// and its implementations.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Ledger errors.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnknownAccount    = errors.New("unknown account")
	ErrInvalidAmount     = errors.New("amount must not be negative")
)

// Ref ties a ledger entry to the session that caused it. The ledger applies
// at most one debit and one credit per session id, so a replayed call is
// acknowledged without moving funds twice.
type Ref struct {
	SessionID uuid.UUID
	Game      string
	Entry     string // model.Entry* kind
}

func (r Ref) String() string {
	return fmt.Sprintf("%s:%s:%s", r.Game, r.SessionID, r.Entry)
}

// Ledger moves funds for a user. Each call is atomic on its own; callers
// never assume a transaction spanning several calls.
type Ledger interface {
	// GetBalance returns the user's balance in minor units.
	GetBalance(ctx context.Context, userID int64) (int64, error)

	// Debit removes amount from the user's balance or fails with
	// ErrInsufficientFunds leaving the balance untouched.
	Debit(ctx context.Context, userID int64, amount int64, ref Ref) error

	// Credit adds amount (possibly 0) to the user's balance.
	Credit(ctx context.Context, userID int64, amount int64, ref Ref) error
}
