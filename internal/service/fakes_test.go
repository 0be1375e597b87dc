package service

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/Sardor8866/festery/internal/model"
	"github.com/Sardor8866/festery/internal/repository"
)

type fakeUsers struct {
	mu    sync.Mutex
	users map[int64]*model.User
}

func newFakeUsers(ids ...int64) *fakeUsers {
	f := &fakeUsers{users: make(map[int64]*model.User)}
	for _, id := range ids {
		f.users[id] = &model.User{UserID: id}
	}
	return f
}

func (f *fakeUsers) GetOrCreate(_ context.Context, userID int64) (*model.User, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[userID]; ok {
		return u, false, nil
	}
	u := &model.User{UserID: userID, CreatedAt: time.Now()}
	f.users[userID] = u
	return u, true, nil
}

func (f *fakeUsers) GetByID(_ context.Context, userID int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetTopUsers(_ context.Context, limit int) ([]*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.User
	for _, u := range f.users {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b *model.User) int {
		if a.Balance != b.Balance {
			if a.Balance > b.Balance {
				return -1
			}
			return 1
		}
		return int(a.UserID - b.UserID)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeUsers) Adjust(_ context.Context, userID, amount int64, txType string, _ *string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	if u.Balance+amount < 0 {
		return nil, repository.ErrInsufficientBalance
	}
	u.Balance += amount
	return u, nil
}

func (f *fakeUsers) GetByUserID(_ context.Context, userID int64, limit int) ([]*model.Transaction, error) {
	return []*model.Transaction{{UserID: userID, Amount: 1, Type: model.TxTypeAdminAdd}}, nil
}

type fakeRanking struct {
	winTypes []string
	limit    int
	date     time.Time
}

func (f *fakeRanking) GetTopTurnover(_ context.Context, limit int) ([]*model.LeaderEntry, error) {
	f.limit = limit
	return []*model.LeaderEntry{{UserID: 1, Total: 500}}, nil
}

func (f *fakeRanking) GetTopWinnings(_ context.Context, types []string, limit int) ([]*model.LeaderEntry, error) {
	f.winTypes = types
	f.limit = limit
	return []*model.LeaderEntry{{UserID: 2, Total: 900}}, nil
}

func (f *fakeRanking) GetDailyWinners(_ context.Context, date time.Time, limit int) ([]*model.DailyRank, error) {
	f.date, f.limit = date, limit
	return []*model.DailyRank{{UserID: 1, NetProfit: 10}}, nil
}

func (f *fakeRanking) GetDailyLosers(_ context.Context, date time.Time, limit int) ([]*model.DailyRank, error) {
	f.date, f.limit = date, limit
	return []*model.DailyRank{{UserID: 3, NetProfit: -10}}, nil
}

func (f *fakeRanking) GetUserDailyProfit(_ context.Context, _ int64, date time.Time) (int64, error) {
	f.date = date
	return 42, nil
}

type fakeReferrals struct {
	mu        sync.Mutex
	referrers map[int64]int64
	balances  map[int64]int64
	accrueErr error
}

func newFakeReferrals() *fakeReferrals {
	return &fakeReferrals{referrers: make(map[int64]int64), balances: make(map[int64]int64)}
}

func (f *fakeReferrals) Register(_ context.Context, userID, referrerID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.referrers[userID]; ok {
		return repository.ErrAlreadyReferred
	}
	f.referrers[userID] = referrerID
	return nil
}

func (f *fakeReferrals) GetReferrer(_ context.Context, userID int64) (*int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.referrers[userID]; ok {
		return &r, nil
	}
	return nil, nil
}

func (f *fakeReferrals) Accrue(_ context.Context, referrerID, amount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.accrueErr != nil {
		return f.accrueErr
	}
	f.balances[referrerID] += amount
	return nil
}

func (f *fakeReferrals) Get(_ context.Context, userID int64) (*model.ReferralAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc := &model.ReferralAccount{UserID: userID, RefBalance: f.balances[userID], TotalEarned: f.balances[userID]}
	for _, r := range f.referrers {
		if r == userID {
			acc.Referrals++
		}
	}
	return acc, nil
}

func (f *fakeReferrals) Withdraw(_ context.Context, userID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	amount := f.balances[userID]
	if amount <= 0 {
		return 0, repository.ErrNothingToWithdraw
	}
	f.balances[userID] = 0
	return amount, nil
}

func (f *fakeReferrals) balance(userID int64) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[userID]
}
