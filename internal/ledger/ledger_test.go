package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sardor8866/festery/internal/model"
	"github.com/Sardor8866/festery/internal/repository"
)

func testRef() Ref {
	return Ref{SessionID: uuid.New(), Game: "tower", Entry: model.EntryStake}
}

func TestMemoryLedger_DebitCredit(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	l.SetBalance(1, 1000)
	ref := testRef()

	require.NoError(t, l.Debit(ctx, 1, 300, ref))
	bal, _ := l.GetBalance(ctx, 1)
	assert.Equal(t, int64(700), bal)

	require.NoError(t, l.Credit(ctx, 1, 570, ref))
	bal, _ = l.GetBalance(ctx, 1)
	assert.Equal(t, int64(1270), bal)

	entries := l.SessionEntries(ref.SessionID)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(-300), entries[0].Amount)
	assert.Equal(t, int64(570), entries[1].Amount)
}

func TestMemoryLedger_InsufficientFunds(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	l.SetBalance(1, 100)

	err := l.Debit(ctx, 1, 101, testRef())
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	bal, _ := l.GetBalance(ctx, 1)
	assert.Equal(t, int64(100), bal)
	assert.Empty(t, l.Entries())
}

func TestMemoryLedger_Idempotent(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	l.SetBalance(1, 100)
	ref := testRef()

	require.NoError(t, l.Debit(ctx, 1, 50, ref))
	require.NoError(t, l.Debit(ctx, 1, 50, ref))
	require.NoError(t, l.Credit(ctx, 1, 80, ref))
	require.NoError(t, l.Credit(ctx, 1, 80, ref))

	bal, _ := l.GetBalance(ctx, 1)
	assert.Equal(t, int64(130), bal)
	assert.Len(t, l.Entries(), 2)
	assert.Equal(t, 2, l.DebitCalls())
	assert.Equal(t, 2, l.CreditCalls())
}

func TestMemoryLedger_FailNextCredits(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	l.FailNextCredits(2)
	ref := testRef()

	assert.ErrorIs(t, l.Credit(ctx, 1, 10, ref), ErrUnavailable)
	assert.ErrorIs(t, l.Credit(ctx, 1, 10, ref), ErrUnavailable)
	assert.NoError(t, l.Credit(ctx, 1, 10, ref))

	bal, _ := l.GetBalance(ctx, 1)
	assert.Equal(t, int64(10), bal)
}

func TestMemoryLedger_RejectsNegative(t *testing.T) {
	l := NewMemoryLedger()
	assert.ErrorIs(t, l.Debit(context.Background(), 1, -1, testRef()), ErrInvalidAmount)
	assert.ErrorIs(t, l.Credit(context.Background(), 1, -1, testRef()), ErrInvalidAmount)
}

func TestCreditWithRetry_EventuallySucceeds(t *testing.T) {
	l := NewMemoryLedger()
	l.FailNextCredits(3)

	var retries atomic.Int32
	err := CreditWithRetry(context.Background(), l, 1, 42, testRef(),
		RetryPolicy{InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond},
		func(error, time.Duration) { retries.Add(1) },
	)
	require.NoError(t, err)
	assert.Equal(t, int32(3), retries.Load())
	assert.Equal(t, 4, l.CreditCalls())

	bal, _ := l.GetBalance(context.Background(), 1)
	assert.Equal(t, int64(42), bal)
}

func TestCreditWithRetry_StopsOnContext(t *testing.T) {
	l := NewMemoryLedger()
	l.SetCreditsFailing(true)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := CreditWithRetry(ctx, l, 1, 42, testRef(),
		RetryPolicy{InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, l.CreditCalls(), 1)
}

type fakeStore struct {
	applied map[string]bool
	balance int64
	err     error
	last    repository.SessionEntry
}

func (f *fakeStore) ApplySessionEntry(_ context.Context, e repository.SessionEntry) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.last = e
	key := fmt.Sprintf("%s/%d", e.SessionID, e.Direction)
	if f.applied[key] {
		return false, nil
	}
	f.applied[key] = true
	f.balance += e.Amount
	return true, nil
}

func (f *fakeStore) Balance(context.Context, int64) (int64, error) {
	return f.balance, f.err
}

func TestPostgres_MapsEntries(t *testing.T) {
	store := &fakeStore{applied: map[string]bool{}, balance: 1000}
	p := NewPostgres(store)
	ctx := context.Background()
	ref := testRef()

	require.NoError(t, p.Debit(ctx, 7, 100, ref))
	assert.Equal(t, int64(-100), store.last.Amount)
	assert.Equal(t, model.DirectionDebit, store.last.Direction)
	assert.Equal(t, "tower_stake", store.last.Type)

	ref.Entry = model.EntryCashOut
	require.NoError(t, p.Credit(ctx, 7, 190, ref))
	require.NoError(t, p.Credit(ctx, 7, 190, ref), "replayed credit is acknowledged")
	assert.Equal(t, "tower_cashout", store.last.Type)

	bal, err := p.GetBalance(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1090), bal)
}

func TestPostgres_MapsErrors(t *testing.T) {
	ctx := context.Background()

	p := NewPostgres(&fakeStore{err: repository.ErrInsufficientBalance})
	assert.ErrorIs(t, p.Debit(ctx, 1, 10, testRef()), ErrInsufficientFunds)

	p = NewPostgres(&fakeStore{err: repository.ErrUserNotFound})
	assert.ErrorIs(t, p.Credit(ctx, 1, 10, testRef()), ErrUnknownAccount)

	boom := errors.New("connection reset")
	p = NewPostgres(&fakeStore{err: boom})
	assert.ErrorIs(t, p.Credit(ctx, 1, 10, testRef()), boom)
}

func TestCreditWithRetry_InvalidAmountIsPermanent(t *testing.T) {
	l := NewMemoryLedger()
	err := CreditWithRetry(context.Background(), l, 1, -5, testRef(), RetryPolicy{}, nil)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Equal(t, 0, l.CreditCalls())
}

// ackLostLedger applies debits but reports the first n as failed.
type ackLostLedger struct {
	*MemoryLedger
	lose atomic.Int32
}

func (a *ackLostLedger) Debit(ctx context.Context, userID, amount int64, ref Ref) error {
	if err := a.MemoryLedger.Debit(ctx, userID, amount, ref); err != nil {
		return err
	}
	if a.lose.Add(-1) >= 0 {
		return errors.New("commit acknowledgement lost")
	}
	return nil
}

func TestDebitWithRetry_ResolvesLostAck(t *testing.T) {
	ctx := context.Background()
	l := &ackLostLedger{MemoryLedger: NewMemoryLedger()}
	l.SetBalance(1, 1000)
	l.lose.Store(2)

	policy := RetryPolicy{InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
	require.NoError(t, DebitWithRetry(ctx, l, 1, 300, testRef(), policy))

	bal, _ := l.GetBalance(ctx, 1)
	assert.Equal(t, int64(700), bal, "replays must not debit twice")
	assert.Equal(t, 3, l.DebitCalls())
}

func TestDebitWithRetry_RefusalIsPermanent(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	l.SetBalance(1, 100)

	policy := RetryPolicy{InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
	err := DebitWithRetry(ctx, l, 1, 300, testRef(), policy)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.True(t, Refused(err))
	assert.Equal(t, 1, l.DebitCalls())
}

func TestDebitWithRetry_StopsOnContext(t *testing.T) {
	l := &ackLostLedger{MemoryLedger: NewMemoryLedger()}
	l.SetBalance(1, 1000)
	l.lose.Store(1 << 30)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	policy := RetryPolicy{InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
	err := DebitWithRetry(ctx, l, 1, 300, testRef(), policy)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, Refused(err))
}
