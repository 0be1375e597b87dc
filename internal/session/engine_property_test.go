package session

import (
	"context"
	"errors"
	"math"
	"testing"

	"pgregory.net/rapid"

	"github.com/Sardor8866/festery/internal/game/board"
)

// TestConservationProperty plays random sessions to a terminal outcome and
// checks that every session moved exactly its stake out and its payout in.
func TestConservationProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		const start = int64(1_000_000)
		l := fundedLedger(start)
		e := newTestEngine(t, l, engineOpts{seed: rapid.Uint64Min(1).Draw(rt, "seed")})
		ctx := context.Background()

		expected := start
		rounds := rapid.IntRange(1, 5).Draw(rt, "rounds")
		for round := 0; round < rounds; round++ {
			d := towerLevel
			if rapid.Bool().Draw(rt, "flat") {
				d = minesLevel
			}
			stake := rapid.Int64Range(10, 5000).Draw(rt, "stake")

			v, err := e.Start(ctx, StartRequest{UserID: testUser, Stake: stake, Difficulty: d})
			if err != nil {
				rt.Fatalf("start: %v", err)
			}
			s := e.Registry().GetActive(testUser)

			var out Outcome
			for out.Kind == "" || out.Kind == OutcomeAdvanced {
				if s.Progress() > 0 && rapid.IntRange(0, 3).Draw(rt, "action") == 0 {
					out, err = e.CashOut(ctx, testUser)
				} else {
					dp := 0
					if v.Topology == board.Layered {
						dp = s.Progress()
					}
					slot := rapid.IntRange(0, len(v.Board[0])-1).Draw(rt, "slot")
					out, err = e.Reveal(ctx, testUser, dp, slot)
					if errors.Is(err, ErrInvalidMove) {
						continue
					}
				}
				if err != nil {
					rt.Fatalf("action: %v", err)
				}
			}

			var want int64
			switch out.Kind {
			case OutcomeBust:
				want = 0
			case OutcomeCashedOut, OutcomeCleared:
				want = int64(math.Round(float64(stake) * out.Multiplier))
			default:
				rt.Fatalf("unexpected outcome %s", out.Kind)
			}
			if out.Credited != want {
				rt.Fatalf("credited %d, want %d", out.Credited, want)
			}

			entries := l.SessionEntries(v.ID)
			if len(entries) != 2 || entries[0].Amount != -stake || entries[1].Amount != want {
				rt.Fatalf("session entries %+v", entries)
			}
			expected += want - stake

			if got := balance(t, l, testUser); got != expected {
				rt.Fatalf("balance %d, want %d", got, expected)
			}
			if e.Registry().GetActive(testUser) != nil {
				rt.Fatalf("session still registered after %s", out.Kind)
			}
		}

		var sum int64
		for _, en := range l.Entries() {
			sum += en.Amount
		}
		if start+sum != expected {
			rt.Fatalf("entries sum %d does not explain balance %d", sum, expected)
		}
	})
}

// TestNoReplayProperty checks that a settled session ignores every further
// action and never touches the ledger again.
func TestNoReplayProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		l := fundedLedger(10_000)
		e := newTestEngine(t, l, engineOpts{seed: rapid.Uint64Min(1).Draw(rt, "seed")})
		ctx := context.Background()

		s := startTower(t, e, 100)
		if _, err := e.Reveal(ctx, testUser, 0, safeSlot(t, s)); err != nil {
			rt.Fatalf("reveal: %v", err)
		}
		if _, err := e.CashOut(ctx, testUser); err != nil {
			rt.Fatalf("cash out: %v", err)
		}
		debits, credits := l.DebitCalls(), l.CreditCalls()

		for i := rapid.IntRange(1, 10).Draw(rt, "actions"); i > 0; i-- {
			switch rapid.IntRange(0, 2).Draw(rt, "kind") {
			case 0:
				_, err := e.Reveal(ctx, testUser, rapid.IntRange(0, 2).Draw(rt, "dp"), rapid.IntRange(0, 2).Draw(rt, "slot"))
				if !errors.Is(err, ErrNoActiveSession) {
					rt.Fatalf("reveal after settle: %v", err)
				}
			case 1:
				if _, err := e.CashOut(ctx, testUser); !errors.Is(err, ErrNoActiveSession) {
					rt.Fatalf("cash out after settle: %v", err)
				}
			case 2:
				if out, err := e.Timeout(s); err != nil || out.Kind != "" {
					rt.Fatalf("timeout after settle: %+v %v", out, err)
				}
			}
		}

		if l.DebitCalls() != debits || l.CreditCalls() != credits {
			rt.Fatalf("ledger touched after settlement")
		}
		if got := balance(t, l, testUser); got != 10_000-100+120 {
			rt.Fatalf("balance %d", got)
		}
	})
}
