package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sardor8866/festery/internal/ledger"
)

var errAckLost = errors.New("commit acknowledgement lost")

// flakyDebitLedger lands the first lost debits and then reports an error,
// and fails the first down debits without applying them.
type flakyDebitLedger struct {
	*ledger.MemoryLedger

	mu      sync.Mutex
	lost    int
	down    int
	forever bool
}

func (f *flakyDebitLedger) Debit(ctx context.Context, userID, amount int64, ref ledger.Ref) error {
	f.mu.Lock()
	switch {
	case f.forever:
		f.mu.Unlock()
		return ledger.ErrUnavailable
	case f.down > 0:
		f.down--
		f.mu.Unlock()
		return ledger.ErrUnavailable
	case f.lost > 0:
		f.lost--
		f.mu.Unlock()
		if err := f.MemoryLedger.Debit(ctx, userID, amount, ref); err != nil {
			return err
		}
		return errAckLost
	}
	f.mu.Unlock()
	return f.MemoryLedger.Debit(ctx, userID, amount, ref)
}

func TestEngine_StartDebitAckLost(t *testing.T) {
	l := &flakyDebitLedger{MemoryLedger: fundedLedger(1000), lost: 1}
	e := newTestEngine(t, l, engineOpts{})

	v, err := e.Start(context.Background(), StartRequest{UserID: testUser, Stake: 400, Difficulty: towerLevel})
	require.NoError(t, err)

	s := e.Registry().GetActive(testUser)
	require.NotNil(t, s, "a landed debit must leave a registered session")
	assert.Equal(t, v.ID, s.ID)
	assert.True(t, e.Watchdog().Armed(s.ID))

	assert.Equal(t, int64(600), balance(t, l, testUser))
	assert.Equal(t, 2, l.DebitCalls())
	entries := l.SessionEntries(s.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(-400), entries[0].Amount)

	_, err = e.Reveal(context.Background(), testUser, 0, safeSlot(t, s))
	require.NoError(t, err)
	out, err := e.CashOut(context.Background(), testUser)
	require.NoError(t, err)
	assert.Equal(t, int64(480), out.Credited)
	assert.Equal(t, int64(1080), balance(t, l, testUser))
}

func TestEngine_StartDebitRetriedUntilAvailable(t *testing.T) {
	l := &flakyDebitLedger{MemoryLedger: fundedLedger(1000), down: 3}
	e := newTestEngine(t, l, engineOpts{})

	_, err := e.Start(context.Background(), StartRequest{UserID: testUser, Stake: 400, Difficulty: towerLevel})
	require.NoError(t, err)
	assert.NotNil(t, e.Registry().GetActive(testUser))
	assert.Equal(t, int64(600), balance(t, l, testUser))
}

func TestEngine_StartDebitRefusedOnRetry(t *testing.T) {
	l := &flakyDebitLedger{MemoryLedger: fundedLedger(100), down: 1}
	j := newMemJournal()
	e := newTestEngine(t, l, engineOpts{journal: j})

	_, err := e.Start(context.Background(), StartRequest{UserID: testUser, Stake: 400, Difficulty: towerLevel})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Nil(t, e.Registry().GetActive(testUser))
	assert.Equal(t, int64(100), balance(t, l, testUser))

	pending, err := j.Pending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestEngine_StartDebitUnresolvedAtClose(t *testing.T) {
	l := &flakyDebitLedger{MemoryLedger: fundedLedger(1000), forever: true}
	j := newMemJournal()
	e := newTestEngine(t, l, engineOpts{journal: j})

	errc := make(chan error, 1)
	go func() {
		_, err := e.Start(context.Background(), StartRequest{UserID: testUser, Stake: 400, Difficulty: towerLevel})
		errc <- err
	}()
	time.Sleep(20 * time.Millisecond)
	e.Close()

	err := <-errc
	assert.ErrorIs(t, err, ErrEngineClosed)
	assert.Nil(t, e.Registry().GetActive(testUser))

	pending, err := j.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1, "the open journal row lets recovery resolve the stake")
	assert.Equal(t, StateActive, pending[0].State)
}

func TestEngine_StartBusyUser(t *testing.T) {
	l := fundedLedger(1000)
	e := newTestEngine(t, l, engineOpts{})

	e.registry.locks.Lock(testUser)
	defer e.registry.locks.Unlock(testUser)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := e.Start(ctx, StartRequest{UserID: testUser, Stake: 100, Difficulty: towerLevel})
	assert.ErrorIs(t, err, ErrBusy)
	assert.Zero(t, l.DebitCalls())
}

func TestEngine_NoTimerOutlivesSettlement(t *testing.T) {
	l := ledger.NewMemoryLedger()
	e := newTestEngine(t, l, engineOpts{})
	ctx := context.Background()

	const users = 50
	var wg sync.WaitGroup
	for u := int64(1); u <= users; u++ {
		l.SetBalance(u, 1000)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := e.Start(ctx, StartRequest{UserID: u, Stake: 100, Difficulty: towerLevel})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			// Bust as soon as the session becomes visible.
			for {
				s := e.Registry().GetActive(u)
				if s == nil {
					time.Sleep(10 * time.Microsecond)
					continue
				}
				_, err := e.Reveal(ctx, u, 0, hazardSlot(t, s))
				assert.NoError(t, err)
				return
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, e.Registry().Len())
	assert.Zero(t, e.Watchdog().Len(), "settled sessions must not keep timers")
}

func TestEngine_SettleAfterCloseLeavesSettling(t *testing.T) {
	l := fundedLedger(10000)
	j := newMemJournal()
	e := newTestEngine(t, l, engineOpts{journal: j})
	ctx := context.Background()

	s := startTower(t, e, 1000)
	_, err := e.Reveal(ctx, testUser, 0, safeSlot(t, s))
	require.NoError(t, err)
	credits := l.CreditCalls()

	e.Close()
	_, err = e.CashOut(ctx, testUser)
	assert.True(t, IsPending(err))
	assert.ErrorIs(t, err, ErrEngineClosed)
	assert.Equal(t, credits, l.CreditCalls())
	assert.Equal(t, StateSettling, s.State())

	rec, ok := j.get(s.ID)
	require.True(t, ok)
	assert.Equal(t, StateSettling, rec.State)
	assert.Equal(t, StateCashedOut, rec.Target)
	assert.Equal(t, int64(1200), rec.Credit)
}

func TestEngine_CloseRacesTimeouts(t *testing.T) {
	for i := 0; i < 20; i++ {
		l := ledger.NewMemoryLedger()
		e := newTestEngine(t, l, engineOpts{timeout: time.Millisecond})
		ctx := context.Background()

		const users = 10
		for u := int64(1); u <= users; u++ {
			l.SetBalance(u, 1000)
			_, err := e.Start(ctx, StartRequest{UserID: u, Stake: 100, Difficulty: towerLevel})
			require.NoError(t, err)
		}
		time.Sleep(time.Duration(i%3) * time.Millisecond)
		e.Close()

		for u := int64(1); u <= users; u++ {
			b := balance(t, l, u)
			if b == 1000 {
				continue
			}
			assert.Equal(t, int64(900), b)
			s := e.Registry().GetActive(u)
			require.NotNil(t, s, "an unrefunded stake must still have its session")
			assert.False(t, s.State().Terminal())
		}
	}
}

// TestEngine_LayoutFixedUntilSettled compares the hazards recorded at start
// with the full board shown once the session is settled.
func TestEngine_LayoutFixedUntilSettled(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		l := fundedLedger(10000)
		j := newMemJournal()
		e := newTestEngine(t, l, engineOpts{journal: j, seed: seed})
		ctx := context.Background()

		s := startTower(t, e, 100)
		rec, ok := j.get(s.ID)
		require.True(t, ok)
		atStart := rec.Hazards

		var out Outcome
		var err error
		for out.Kind == "" || out.Kind == OutcomeAdvanced {
			slot := safeSlot(t, s)
			if seed%2 == 0 && s.Progress() == 1 {
				slot = hazardSlot(t, s)
			}
			out, err = e.Reveal(ctx, testUser, s.Progress(), slot)
			require.NoError(t, err)
		}

		require.Len(t, out.View.Board, len(atStart))
		for level, row := range out.View.Board {
			var hazards []int
			for slot, cell := range row {
				if cell.Hazard {
					hazards = append(hazards, slot)
				}
			}
			assert.Equal(t, atStart[level], hazards, "seed %d level %d", seed, level)
		}
	}
}
