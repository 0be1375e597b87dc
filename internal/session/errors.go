package session

import "errors"

// Engine errors. All of them except ErrSettlementPending are rejected
// preconditions with no side effects.
var (
	ErrAlreadyActive     = errors.New("user already has an active session")
	ErrInsufficientFunds = errors.New("insufficient funds for stake")
	ErrInvalidDifficulty = errors.New("invalid difficulty")
	ErrInvalidStake      = errors.New("invalid stake")
	ErrNoActiveSession   = errors.New("no active session")
	ErrInvalidMove       = errors.New("invalid move")
	ErrNothingToCashOut  = errors.New("nothing to cash out before the first cleared step")

	// ErrSettlementPending means the outcome is decided but the ledger has
	// not acknowledged the credit yet. The session stays registered until it
	// does; recovery finishes it after a restart.
	ErrSettlementPending = errors.New("settlement pending")

	ErrEngineClosed = errors.New("engine closed")

	// ErrBusy means another start for the same user held its lock until the
	// request gave up.
	ErrBusy = errors.New("another request for this user is in progress")
)
