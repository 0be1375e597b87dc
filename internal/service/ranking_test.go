package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankingService_Leaders(t *testing.T) {
	txs := &fakeRanking{}
	s := NewRankingService(newFakeUsers(), txs, []string{"mines", "tower"}, nil)
	ctx := context.Background()

	entries, err := s.Leaders(ctx, BoardTurnover, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(500), entries[0].Total)
	assert.Equal(t, 10, txs.limit, "non-positive limit falls back to the default")

	entries, err = s.Leaders(ctx, BoardWins, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(900), entries[0].Total)
	assert.Equal(t, 5, txs.limit)
	assert.Equal(t, []string{"mines_cashout", "mines_clear", "tower_cashout", "tower_clear"}, txs.winTypes)

	_, err = s.Leaders(ctx, "richest", 5)
	assert.ErrorIs(t, err, ErrUnknownBoard)
}

func TestRankingService_DailyUsesTimezone(t *testing.T) {
	txs := &fakeRanking{}
	loc := time.FixedZone("UTC+8", 8*60*60)
	s := NewRankingService(newFakeUsers(), txs, nil, loc)
	fixed := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	ctx := context.Background()

	_, err := s.GetDailyWinners(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, txs.date.Day(), "20:00 UTC is already the next day in UTC+8")
	assert.Equal(t, loc, txs.date.Location())

	losers, err := s.GetDailyLosers(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(-10), losers[0].NetProfit)

	profit, err := s.GetUserDailyProfit(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(42), profit)
}

func TestRankingService_GetTopUsers(t *testing.T) {
	users := newFakeUsers(1, 2, 3)
	users.users[2].Balance = 300
	users.users[3].Balance = 200
	s := NewRankingService(users, &fakeRanking{}, nil, nil)

	top, err := s.GetTopUsers(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, int64(2), top[0].UserID)
	assert.Equal(t, int64(3), top[1].UserID)
}
