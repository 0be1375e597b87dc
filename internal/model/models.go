// Package model defines the persisted data models.
package model

import (
	"time"

	"github.com/google/uuid"
)

// User represents a player account. Balance is in minor units.
type User struct {
	UserID    int64     `db:"user_id" json:"user_id"`
	Balance   int64     `db:"balance" json:"balance"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction represents a balance change record. Game entries carry the
// session they belong to and a direction (-1 debit, +1 credit); the pair is
// unique so a replayed entry is detected instead of applied twice.
type Transaction struct {
	ID          int64      `db:"id" json:"id"`
	UserID      int64      `db:"user_id" json:"user_id"`
	Amount      int64      `db:"amount" json:"amount"`
	Type        string     `db:"type" json:"type"`
	SessionID   *uuid.UUID `db:"session_id" json:"session_id,omitempty"`
	Direction   int16      `db:"direction" json:"direction"`
	Description *string    `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// DailyRank represents a user's daily game performance for ranking.
type DailyRank struct {
	UserID    int64 `db:"user_id" json:"user_id"`
	NetProfit int64 `db:"net_profit" json:"net_profit"`
}

// LeaderEntry is one row of a cumulative leaderboard.
type LeaderEntry struct {
	UserID int64 `db:"user_id" json:"user_id"`
	Total  int64 `db:"total" json:"total"`
}

// SessionRecord is the durable journal row of one wager session.
type SessionRecord struct {
	ID        uuid.UUID `db:"id"`
	UserID    int64     `db:"user_id"`
	Game      string    `db:"game"`
	Level     int       `db:"level"`
	Stake     int64     `db:"stake"`
	Hazards   [][]int   `db:"hazards"`
	Progress  int       `db:"progress"`
	State     string    `db:"state"`
	Target    *string   `db:"target"`
	Credit    *int64    `db:"credit"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// ReferralAccount holds a referrer's commission balance.
type ReferralAccount struct {
	UserID         int64     `db:"user_id" json:"user_id"`
	ReferrerID     *int64    `db:"referrer_id" json:"referrer_id,omitempty"`
	RefBalance     int64     `db:"ref_balance" json:"ref_balance"`
	TotalEarned    int64     `db:"total_earned" json:"total_earned"`
	TotalWithdrawn int64     `db:"total_withdrawn" json:"total_withdrawn"`
	Referrals      int       `db:"referrals" json:"referrals"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Transaction types for categorizing balance changes.
const (
	TxTypeAdminAdd         = "admin_add"         // Admin added balance
	TxTypeReferralWithdraw = "referral_withdraw" // Referral balance moved to main balance
)

// Game ledger entry kinds, combined with the game command into a tx type.
const (
	EntryStake   = "stake"
	EntryBust    = "bust"
	EntryCashOut = "cashout"
	EntryClear   = "clear"
	EntryRefund  = "refund"
)

// Session journal states.
const (
	SessionStateActive    = "active"
	SessionStateSettling  = "settling"
	SessionStateCashedOut = "cashed_out"
	SessionStateBusted    = "busted"
	SessionStateCleared   = "cleared"
	SessionStateRefunded  = "refunded"
)

// Ledger entry directions.
const (
	DirectionDebit  int16 = -1
	DirectionCredit int16 = 1
)

// GameTxType builds the transaction type of a game ledger entry, e.g. "tower_cashout".
func GameTxType(game, entry string) string {
	return game + "_" + entry
}

// WinningEntries returns the entry kinds that count as winnings on leaderboards.
// Refunds return the stake and are not a win.
func WinningEntries() []string {
	return []string{EntryCashOut, EntryClear}
}
