package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Sardor8866/festery/internal/model"
)

// TransactionRepository reads the transaction history and the rankings
// derived from it. Game entries are the rows that carry a session id.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new TransactionRepository instance.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

const transactionColumns = `id, user_id, amount, type, session_id, direction, description, created_at`

func scanTransactions(rows pgx.Rows) ([]*model.Transaction, error) {
	defer rows.Close()

	var transactions []*model.Transaction
	for rows.Next() {
		var tx model.Transaction
		err := rows.Scan(
			&tx.ID,
			&tx.UserID,
			&tx.Amount,
			&tx.Type,
			&tx.SessionID,
			&tx.Direction,
			&tx.Description,
			&tx.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, &tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}

// GetByUserID retrieves transactions for a user, newest first.
func (r *TransactionRepository) GetByUserID(ctx context.Context, userID int64, limit int) ([]*model.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	return scanTransactions(rows)
}

// GetBySession retrieves the ledger entries of one session in order.
func (r *TransactionRepository) GetBySession(ctx context.Context, sessionID uuid.UUID) ([]*model.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE session_id = $1
		ORDER BY id ASC`

	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session transactions: %w", err)
	}
	return scanTransactions(rows)
}

func dayBounds(date time.Time) (time.Time, time.Time) {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	return start, start.Add(24 * time.Hour)
}

func (r *TransactionRepository) dailyRanks(ctx context.Context, query string, args ...any) ([]*model.DailyRank, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ranks []*model.DailyRank
	for rows.Next() {
		var rank model.DailyRank
		if err := rows.Scan(&rank.UserID, &rank.NetProfit); err != nil {
			return nil, fmt.Errorf("failed to scan daily rank: %w", err)
		}
		ranks = append(ranks, &rank)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily ranks: %w", err)
	}
	return ranks, nil
}

// GetDailyWinners retrieves the users with the highest positive net game
// profit on a date.
func (r *TransactionRepository) GetDailyWinners(ctx context.Context, date time.Time, limit int) ([]*model.DailyRank, error) {
	start, end := dayBounds(date)

	const query = `
		SELECT user_id, COALESCE(SUM(amount), 0)::BIGINT AS net_profit
		FROM transactions
		WHERE session_id IS NOT NULL
		  AND created_at >= $1
		  AND created_at < $2
		GROUP BY user_id
		HAVING SUM(amount) > 0
		ORDER BY net_profit DESC, user_id ASC
		LIMIT $3
	`

	ranks, err := r.dailyRanks(ctx, query, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily winners: %w", err)
	}
	return ranks, nil
}

// GetDailyLosers retrieves the users with the largest net game loss on a date.
func (r *TransactionRepository) GetDailyLosers(ctx context.Context, date time.Time, limit int) ([]*model.DailyRank, error) {
	start, end := dayBounds(date)

	const query = `
		SELECT user_id, COALESCE(SUM(amount), 0)::BIGINT AS net_profit
		FROM transactions
		WHERE session_id IS NOT NULL
		  AND created_at >= $1
		  AND created_at < $2
		GROUP BY user_id
		HAVING SUM(amount) < 0
		ORDER BY net_profit ASC, user_id ASC
		LIMIT $3
	`

	ranks, err := r.dailyRanks(ctx, query, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily losers: %w", err)
	}
	return ranks, nil
}

// GetUserDailyProfit retrieves a user's net game profit for a date.
func (r *TransactionRepository) GetUserDailyProfit(ctx context.Context, userID int64, date time.Time) (int64, error) {
	start, end := dayBounds(date)

	const query = `
		SELECT COALESCE(SUM(amount), 0)::BIGINT
		FROM transactions
		WHERE user_id = $1
		  AND session_id IS NOT NULL
		  AND created_at >= $2
		  AND created_at < $3
	`

	var profit int64
	if err := r.pool.QueryRow(ctx, query, userID, start, end).Scan(&profit); err != nil {
		return 0, fmt.Errorf("failed to get user daily profit: %w", err)
	}
	return profit, nil
}

func (r *TransactionRepository) leaders(ctx context.Context, query string, args ...any) ([]*model.LeaderEntry, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*model.LeaderEntry
	for rows.Next() {
		var e model.LeaderEntry
		if err := rows.Scan(&e.UserID, &e.Total); err != nil {
			return nil, fmt.Errorf("failed to scan leader: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaders: %w", err)
	}
	return entries, nil
}

// GetTopTurnover ranks users by the total of their accepted stakes.
func (r *TransactionRepository) GetTopTurnover(ctx context.Context, limit int) ([]*model.LeaderEntry, error) {
	const query = `
		SELECT user_id, (-SUM(amount))::BIGINT AS total
		FROM transactions
		WHERE session_id IS NOT NULL AND direction = $1
		GROUP BY user_id
		ORDER BY total DESC, user_id ASC
		LIMIT $2
	`

	entries, err := r.leaders(ctx, query, model.DirectionDebit, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get turnover leaders: %w", err)
	}
	return entries, nil
}

// GetTopWinnings ranks users by the total they won on cash-outs and clears.
// types lists the transaction types that count as winnings.
func (r *TransactionRepository) GetTopWinnings(ctx context.Context, types []string, limit int) ([]*model.LeaderEntry, error) {
	const query = `
		SELECT user_id, SUM(amount)::BIGINT AS total
		FROM transactions
		WHERE session_id IS NOT NULL AND direction = $1 AND type = ANY($2) AND amount > 0
		GROUP BY user_id
		ORDER BY total DESC, user_id ASC
		LIMIT $3
	`

	entries, err := r.leaders(ctx, query, model.DirectionCredit, types, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get winnings leaders: %w", err)
	}
	return entries, nil
}
