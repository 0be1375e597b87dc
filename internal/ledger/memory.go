package ledger

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrUnavailable is returned by MemoryLedger while credit failures are injected.
var ErrUnavailable = errors.New("ledger unavailable")

// Entry is one applied movement recorded by MemoryLedger.
type Entry struct {
	UserID int64
	Amount int64 // negative for debits
	Ref    Ref
}

type entryKey struct {
	session uuid.UUID
	credit  bool
}

// MemoryLedger is an in-process ledger. Unknown users start with a zero
// balance. It records every applied entry and can be told to fail credits,
// which makes it the ledger of choice for engine tests and local runs.
type MemoryLedger struct {
	mu          sync.Mutex
	balances    map[int64]int64
	applied     map[entryKey]bool
	entries     []Entry
	debitCalls  int
	creditCalls int
	failCredits int
	failForever bool
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[int64]int64),
		applied:  make(map[entryKey]bool),
	}
}

// SetBalance sets a user's balance directly.
func (m *MemoryLedger) SetBalance(userID, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] = amount
}

// FailNextCredits makes the next n credit calls fail with ErrUnavailable.
func (m *MemoryLedger) FailNextCredits(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCredits = n
}

// SetCreditsFailing makes every credit fail until called again with false.
func (m *MemoryLedger) SetCreditsFailing(failing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failForever = failing
}

// GetBalance returns the user's balance.
func (m *MemoryLedger) GetBalance(_ context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[userID], nil
}

// Debit removes amount from the user's balance.
func (m *MemoryLedger) Debit(ctx context.Context, userID int64, amount int64, ref Ref) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if amount < 0 {
		return ErrInvalidAmount
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.debitCalls++

	key := entryKey{session: ref.SessionID}
	if m.applied[key] {
		return nil
	}
	if m.balances[userID] < amount {
		return ErrInsufficientFunds
	}
	m.balances[userID] -= amount
	m.applied[key] = true
	m.entries = append(m.entries, Entry{UserID: userID, Amount: -amount, Ref: ref})
	return nil
}

// Credit adds amount to the user's balance.
func (m *MemoryLedger) Credit(ctx context.Context, userID int64, amount int64, ref Ref) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if amount < 0 {
		return ErrInvalidAmount
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.creditCalls++

	if m.failForever {
		return ErrUnavailable
	}
	if m.failCredits > 0 {
		m.failCredits--
		return ErrUnavailable
	}

	key := entryKey{session: ref.SessionID, credit: true}
	if m.applied[key] {
		return nil
	}
	m.balances[userID] += amount
	m.applied[key] = true
	m.entries = append(m.entries, Entry{UserID: userID, Amount: amount, Ref: ref})
	return nil
}

// DebitCalls returns how many times Debit was called.
func (m *MemoryLedger) DebitCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.debitCalls
}

// CreditCalls returns how many times Credit was called, failed attempts included.
func (m *MemoryLedger) CreditCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creditCalls
}

// Entries returns a copy of the applied entries in order.
func (m *MemoryLedger) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// SessionEntries returns the applied entries of one session.
func (m *MemoryLedger) SessionEntries(id uuid.UUID) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for _, e := range m.entries {
		if e.Ref.SessionID == id {
			out = append(out, e)
		}
	}
	return out
}
