package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sardor8866/festery/internal/model"
)

// ErrUnknownBoard is returned for a leaderboard name that does not exist.
var ErrUnknownBoard = errors.New("unknown leaderboard")

// Leaderboards.
const (
	BoardTurnover = "turnover"
	BoardWins     = "wins"
)

// RankingStore is the transaction storage behind the leaderboards.
type RankingStore interface {
	GetTopTurnover(ctx context.Context, limit int) ([]*model.LeaderEntry, error)
	GetTopWinnings(ctx context.Context, types []string, limit int) ([]*model.LeaderEntry, error)
	GetDailyWinners(ctx context.Context, date time.Time, limit int) ([]*model.DailyRank, error)
	GetDailyLosers(ctx context.Context, date time.Time, limit int) ([]*model.DailyRank, error)
	GetUserDailyProfit(ctx context.Context, userID int64, date time.Time) (int64, error)
}

// RankingService handles ranking and leaderboard operations.
type RankingService struct {
	users    UserStore
	txs      RankingStore
	winTypes []string
	timezone *time.Location
	now      func() time.Time
}

// NewRankingService creates a new RankingService instance. games lists the
// game commands whose cash-outs and clears count as winnings.
func NewRankingService(users UserStore, txs RankingStore, games []string, timezone *time.Location) *RankingService {
	if timezone == nil {
		timezone = time.UTC
	}

	var winTypes []string
	for _, g := range games {
		for _, entry := range model.WinningEntries() {
			winTypes = append(winTypes, model.GameTxType(g, entry))
		}
	}

	return &RankingService{
		users:    users,
		txs:      txs,
		winTypes: winTypes,
		timezone: timezone,
		now:      time.Now,
	}
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 10
	}
	return limit
}

// GetTopUsers retrieves the top users by balance.
func (s *RankingService) GetTopUsers(ctx context.Context, limit int) ([]*model.User, error) {
	return s.users.GetTopUsers(ctx, clampLimit(limit))
}

// Leaders returns a cumulative leaderboard: by turnover (sum of stakes) or by
// wins (sum of cash-out and clear credits).
func (s *RankingService) Leaders(ctx context.Context, board string, limit int) ([]*model.LeaderEntry, error) {
	limit = clampLimit(limit)
	switch board {
	case BoardTurnover, "":
		return s.txs.GetTopTurnover(ctx, limit)
	case BoardWins:
		return s.txs.GetTopWinnings(ctx, s.winTypes, limit)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBoard, board)
}

// GetDailyWinners retrieves today's top winners (users with most profit).
func (s *RankingService) GetDailyWinners(ctx context.Context, limit int) ([]*model.DailyRank, error) {
	return s.txs.GetDailyWinners(ctx, s.today(), clampLimit(limit))
}

// GetDailyLosers retrieves today's top losers (users with most loss).
func (s *RankingService) GetDailyLosers(ctx context.Context, limit int) ([]*model.DailyRank, error) {
	return s.txs.GetDailyLosers(ctx, s.today(), clampLimit(limit))
}

// GetUserDailyProfit retrieves a specific user's profit for today.
func (s *RankingService) GetUserDailyProfit(ctx context.Context, userID int64) (int64, error) {
	return s.txs.GetUserDailyProfit(ctx, userID, s.today())
}

func (s *RankingService) today() time.Time {
	return s.now().In(s.timezone)
}
