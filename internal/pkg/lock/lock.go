// Package lock provides per-user keyed mutexes.
// The session registry uses it to serialise the start path of one user
// (active check, stake debit, insert) without blocking other users.
package lock

import (
	"context"
	"sync"
)

// userMutex is a mutex shared by everyone currently holding or waiting for
// the same user. refs counts them so the entry can be dropped when idle.
type userMutex struct {
	mu   sync.Mutex
	refs int
}

// UserLock provides per-user locking.
type UserLock struct {
	mu    sync.Mutex
	locks map[int64]*userMutex
}

// NewUserLock creates a new UserLock instance.
func NewUserLock() *UserLock {
	return &UserLock{locks: make(map[int64]*userMutex)}
}

// acquireRef returns the user's mutex and registers the caller as a user of it.
func (ul *UserLock) acquireRef(userID int64) *userMutex {
	ul.mu.Lock()
	defer ul.mu.Unlock()

	m, ok := ul.locks[userID]
	if !ok {
		m = &userMutex{}
		ul.locks[userID] = m
	}
	m.refs++
	return m
}

// releaseRef drops the caller's reference and forgets idle entries.
func (ul *UserLock) releaseRef(userID int64, m *userMutex) {
	ul.mu.Lock()
	defer ul.mu.Unlock()

	m.refs--
	if m.refs == 0 {
		delete(ul.locks, userID)
	}
}

// Lock acquires the lock for a user.
func (ul *UserLock) Lock(userID int64) {
	ul.acquireRef(userID).mu.Lock()
}

// Unlock releases the lock for a user. Unlocking a user that is not locked
// is a no-op.
func (ul *UserLock) Unlock(userID int64) {
	ul.mu.Lock()
	m, ok := ul.locks[userID]
	ul.mu.Unlock()
	if !ok {
		return
	}
	m.mu.Unlock()
	ul.releaseRef(userID, m)
}

// TryLock attempts to acquire the lock without blocking.
func (ul *UserLock) TryLock(userID int64) bool {
	m := ul.acquireRef(userID)
	if m.mu.TryLock() {
		return true
	}
	ul.releaseRef(userID, m)
	return false
}

// LockContext acquires the lock or gives up when ctx is done.
func (ul *UserLock) LockContext(ctx context.Context, userID int64) error {
	m := ul.acquireRef(userID)

	acquired := make(chan struct{})
	go func() {
		m.mu.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		return nil
	case <-ctx.Done():
		// The waiter still takes the mutex eventually; hand it straight back.
		go func() {
			<-acquired
			m.mu.Unlock()
			ul.releaseRef(userID, m)
		}()
		return ErrLockTimeout
	}
}

// WithLock executes fn while holding the user's lock.
func (ul *UserLock) WithLock(userID int64, fn func() error) error {
	ul.Lock(userID)
	defer ul.Unlock(userID)
	return fn()
}

// WithLockContext executes fn while holding the user's lock, giving up on
// acquisition when ctx is done.
func (ul *UserLock) WithLockContext(ctx context.Context, userID int64, fn func() error) error {
	if err := ul.LockContext(ctx, userID); err != nil {
		return err
	}
	defer ul.Unlock(userID)
	return fn()
}

// Len reports how many users currently have a lock entry.
func (ul *UserLock) Len() int {
	ul.mu.Lock()
	defer ul.mu.Unlock()
	return len(ul.locks)
}
