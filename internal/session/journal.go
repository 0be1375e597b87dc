package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Sardor8866/festery/internal/game"
	"github.com/Sardor8866/festery/internal/model"
)

// Record is the durable image of a session.
type Record struct {
	ID         uuid.UUID
	UserID     int64
	Difficulty game.Difficulty
	Stake      int64
	Hazards    [][]int
	Progress   int
	State      State
	Target     State // set while settling
	Credit     int64 // amount owed while settling, credited once settled
	CreatedAt  time.Time
}

// Journal persists session transitions so a restart can finish what a crash
// interrupted. Started is written before the stake is debited.
type Journal interface {
	Started(ctx context.Context, rec Record) error
	Aborted(ctx context.Context, id uuid.UUID) error
	Progressed(ctx context.Context, id uuid.UUID, progress int) error
	Settling(ctx context.Context, id uuid.UUID, progress int, target State, credit int64) error
	Settled(ctx context.Context, id uuid.UUID, state State, credit int64) error

	// Pending returns sessions left active or settling whose stake was taken.
	Pending(ctx context.Context) ([]Record, error)
}

// NopJournal keeps nothing. Sessions live only as long as the process.
type NopJournal struct{}

func (NopJournal) Started(context.Context, Record) error { return nil }
func (NopJournal) Aborted(context.Context, uuid.UUID) error { return nil }
func (NopJournal) Progressed(context.Context, uuid.UUID, int) error { return nil }
func (NopJournal) Settling(context.Context, uuid.UUID, int, State, int64) error { return nil }
func (NopJournal) Settled(context.Context, uuid.UUID, State, int64) error { return nil }
func (NopJournal) Pending(context.Context) ([]Record, error) { return nil, nil }

// JournalStore is the storage behind PostgresJournal.
type JournalStore interface {
	Create(ctx context.Context, rec *model.SessionRecord) error
	UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error
	MarkSettling(ctx context.Context, id uuid.UUID, progress int, target string, credit int64) error
	MarkSettled(ctx context.Context, id uuid.UUID, state string, credit int64) error
	MarkAborted(ctx context.Context, id uuid.UUID) error
	AbortOrphans(ctx context.Context) (int64, error)
	ListOpen(ctx context.Context) ([]*model.SessionRecord, error)
}

// PostgresJournal writes the journal through the session repository.
type PostgresJournal struct {
	store JournalStore
}

// NewPostgresJournal creates a journal over store.
func NewPostgresJournal(store JournalStore) *PostgresJournal {
	return &PostgresJournal{store: store}
}

func (j *PostgresJournal) Started(ctx context.Context, rec Record) error {
	return j.store.Create(ctx, &model.SessionRecord{
		ID:        rec.ID,
		UserID:    rec.UserID,
		Game:      rec.Difficulty.Game,
		Level:     rec.Difficulty.Level,
		Stake:     rec.Stake,
		Hazards:   rec.Hazards,
		Progress:  rec.Progress,
		State:     string(rec.State),
		CreatedAt: rec.CreatedAt,
	})
}

func (j *PostgresJournal) Aborted(ctx context.Context, id uuid.UUID) error {
	return j.store.MarkAborted(ctx, id)
}

func (j *PostgresJournal) Progressed(ctx context.Context, id uuid.UUID, progress int) error {
	return j.store.UpdateProgress(ctx, id, progress)
}

func (j *PostgresJournal) Settling(ctx context.Context, id uuid.UUID, progress int, target State, credit int64) error {
	return j.store.MarkSettling(ctx, id, progress, string(target), credit)
}

func (j *PostgresJournal) Settled(ctx context.Context, id uuid.UUID, state State, credit int64) error {
	return j.store.MarkSettled(ctx, id, string(state), credit)
}

// Pending first closes sessions whose debit never landed, then lists the rest.
func (j *PostgresJournal) Pending(ctx context.Context) ([]Record, error) {
	if _, err := j.store.AbortOrphans(ctx); err != nil {
		return nil, err
	}

	rows, err := j.store.ListOpen(ctx)
	if err != nil {
		return nil, err
	}

	recs := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec := Record{
			ID:         row.ID,
			UserID:     row.UserID,
			Difficulty: game.Difficulty{Game: row.Game, Level: row.Level},
			Stake:      row.Stake,
			Hazards:    row.Hazards,
			Progress:   row.Progress,
			State:      State(row.State),
			CreatedAt:  row.CreatedAt,
		}
		if row.Target != nil {
			rec.Target = State(*row.Target)
		}
		if row.Credit != nil {
			rec.Credit = *row.Credit
		}
		if rec.State == StateSettling && !rec.Target.Terminal() {
			return nil, fmt.Errorf("session %s is settling without a valid target %q", rec.ID, rec.Target)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
