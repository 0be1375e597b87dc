package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Sardor8866/festery/internal/model"
)

// Journal states that exist only in storage.
const (
	JournalStateAborted = "aborted" // stake debit never landed
)

// Session repository errors.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session already journaled")
)

// SessionRepository persists the session journal used for crash recovery.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository instance.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `id, user_id, game, level, stake, hazards, progress, state, target, credit, created_at, updated_at`

func scanSession(row pgx.Row) (*model.SessionRecord, error) {
	var rec model.SessionRecord
	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.Game,
		&rec.Level,
		&rec.Stake,
		&rec.Hazards,
		&rec.Progress,
		&rec.State,
		&rec.Target,
		&rec.Credit,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Create journals a new session together with its hazard layout.
func (r *SessionRepository) Create(ctx context.Context, rec *model.SessionRecord) error {
	const query = `
		INSERT INTO game_sessions (id, user_id, game, level, stake, hazards, progress, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
	`

	_, err := r.pool.Exec(ctx, query,
		rec.ID, rec.UserID, rec.Game, rec.Level, rec.Stake, rec.Hazards, rec.Progress, rec.State, rec.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSessionExists
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetByID retrieves a journaled session.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.SessionRecord, error) {
	query := `SELECT ` + sessionColumns + ` FROM game_sessions WHERE id = $1`

	rec, err := scanSession(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return rec, nil
}

func (r *SessionRepository) exec(ctx context.Context, what, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// UpdateProgress records the cleared decision points of an active session.
func (r *SessionRepository) UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error {
	const query = `
		UPDATE game_sessions
		SET progress = $2, updated_at = NOW()
		WHERE id = $1 AND state = $3 AND progress <= $2
	`
	return r.exec(ctx, "update session progress", query, id, progress, model.SessionStateActive)
}

// MarkSettling records the terminal target and the amount owed before the
// credit is attempted.
func (r *SessionRepository) MarkSettling(ctx context.Context, id uuid.UUID, progress int, target string, credit int64) error {
	const query = `
		UPDATE game_sessions
		SET state = $2, progress = $3, target = $4, credit = $5, updated_at = NOW()
		WHERE id = $1 AND state = $6
	`
	return r.exec(ctx, "mark session settling", query,
		id, model.SessionStateSettling, progress, target, credit, model.SessionStateActive)
}

// MarkSettled records the final state after the credit was acknowledged.
func (r *SessionRepository) MarkSettled(ctx context.Context, id uuid.UUID, state string, credit int64) error {
	const query = `
		UPDATE game_sessions
		SET state = $2, credit = $3, updated_at = NOW()
		WHERE id = $1 AND state IN ($4, $5)
	`
	return r.exec(ctx, "mark session settled", query,
		id, state, credit, model.SessionStateActive, model.SessionStateSettling)
}

// MarkAborted closes a session whose stake was never taken.
func (r *SessionRepository) MarkAborted(ctx context.Context, id uuid.UUID) error {
	const query = `
		UPDATE game_sessions
		SET state = $2, updated_at = NOW()
		WHERE id = $1 AND state = $3
	`
	return r.exec(ctx, "mark session aborted", query, id, JournalStateAborted, model.SessionStateActive)
}

// AbortOrphans closes open sessions that have no stake debit on record and
// returns how many it closed.
func (r *SessionRepository) AbortOrphans(ctx context.Context) (int64, error) {
	const query = `
		UPDATE game_sessions s
		SET state = $1, updated_at = NOW()
		WHERE s.state = $2
		  AND NOT EXISTS (
			SELECT 1 FROM transactions t
			WHERE t.session_id = s.id AND t.direction = $3
		  )
	`

	tag, err := r.pool.Exec(ctx, query, JournalStateAborted, model.SessionStateActive, model.DirectionDebit)
	if err != nil {
		return 0, fmt.Errorf("failed to abort orphan sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListOpen returns sessions still active or settling whose stake debit is on
// record, oldest first.
func (r *SessionRepository) ListOpen(ctx context.Context) ([]*model.SessionRecord, error) {
	query := `SELECT ` + sessionColumns + `
		FROM game_sessions s
		WHERE s.state IN ($1, $2)
		  AND EXISTS (
			SELECT 1 FROM transactions t
			WHERE t.session_id = s.id AND t.direction = $3
		  )
		ORDER BY s.created_at ASC`

	rows, err := r.pool.Query(ctx, query, model.SessionStateActive, model.SessionStateSettling, model.DirectionDebit)
	if err != nil {
		return nil, fmt.Errorf("failed to list open sessions: %w", err)
	}
	defer rows.Close()

	var recs []*model.SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return recs, nil
}
