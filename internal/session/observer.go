package session

import "context"

// Observer is told about session lifecycle events after they are committed.
// Observers run on the caller's goroutine and must not block.
type Observer interface {
	SessionStarted(ctx context.Context, v View)
	SessionSettled(ctx context.Context, v View, o Outcome)
}

// RetryObserver is optionally implemented by observers that want to count
// failed settlement credit attempts.
type RetryObserver interface {
	CreditRetried(game string)
}
