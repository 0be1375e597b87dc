package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// watch is one armed timer. gen changes on every re-arm so a timer that was
// already firing when it got replaced can tell it is stale.
type watch struct {
	timer *time.Timer
	gen   uint64
}

// Watchdog keeps one inactivity timer per session. When a timer expires it
// hands the session to fire exactly once and forgets it.
type Watchdog struct {
	timeout time.Duration
	fire    func(*Session)

	mu      sync.Mutex
	watches map[uuid.UUID]*watch
	gen     uint64
	stopped bool
}

// NewWatchdog creates a watchdog calling fire after timeout of inactivity.
func NewWatchdog(timeout time.Duration, fire func(*Session)) *Watchdog {
	return &Watchdog{
		timeout: timeout,
		fire:    fire,
		watches: make(map[uuid.UUID]*watch),
	}
}

// Timeout returns the configured inactivity timeout.
func (w *Watchdog) Timeout() time.Duration {
	return w.timeout
}

// Arm starts (or restarts) the session's timer with the full timeout.
func (w *Watchdog) Arm(s *Session) {
	w.ArmAfter(s, w.timeout)
}

// ArmAfter starts (or restarts) the session's timer to fire after d.
func (w *Watchdog) ArmAfter(s *Session, d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.armLocked(s, d)
}

// Reset restarts the timer of an armed session. Sessions without a timer
// (already settling or settled) are left alone.
func (w *Watchdog) Reset(s *Session) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.watches[s.ID]; ok {
		w.armLocked(s, w.timeout)
	}
}

func (w *Watchdog) armLocked(s *Session, d time.Duration) {
	if w.stopped {
		return
	}
	if old, ok := w.watches[s.ID]; ok {
		old.timer.Stop()
	}

	w.gen++
	gen := w.gen
	w.watches[s.ID] = &watch{
		gen:   gen,
		timer: time.AfterFunc(d, func() { w.expire(s, gen) }),
	}
}

// Cancel stops the session's timer. Cancelling is best-effort: a timer that
// is already firing still calls fire, which must re-check the session state.
func (w *Watchdog) Cancel(id uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if wt, ok := w.watches[id]; ok {
		wt.timer.Stop()
		delete(w.watches, id)
	}
}

// Armed reports whether the session currently has a timer.
func (w *Watchdog) Armed(id uuid.UUID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.watches[id]
	return ok
}

// Len returns the number of armed timers.
func (w *Watchdog) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watches)
}

// Stop cancels every timer and refuses new ones.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopped = true
	for id, wt := range w.watches {
		wt.timer.Stop()
		delete(w.watches, id)
	}
}

func (w *Watchdog) expire(s *Session, gen uint64) {
	w.mu.Lock()
	wt, ok := w.watches[s.ID]
	if !ok || wt.gen != gen {
		w.mu.Unlock()
		return
	}
	delete(w.watches, s.ID)
	w.mu.Unlock()

	w.fire(s)
}
