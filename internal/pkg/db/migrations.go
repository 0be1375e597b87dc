package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// Execer is the subset of pgx used to apply migrations. Both *pgxpool.Pool
// and pgx.Tx satisfy it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{
		name: "users table",
		sql: `
			CREATE TABLE IF NOT EXISTS users (
				user_id BIGINT PRIMARY KEY,
				balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_users_balance ON users(balance DESC);
		`,
	},
	{
		name: "transactions table",
		sql: `
			CREATE TABLE IF NOT EXISTS transactions (
				id BIGSERIAL PRIMARY KEY,
				user_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
				amount BIGINT NOT NULL,
				type VARCHAR(50) NOT NULL,
				session_id UUID,
				direction SMALLINT NOT NULL DEFAULT 0,
				description TEXT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_transactions_user_time ON transactions(user_id, created_at DESC);
			CREATE INDEX IF NOT EXISTS idx_transactions_type_time ON transactions(type, created_at DESC);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_session_direction
				ON transactions(session_id, direction) WHERE session_id IS NOT NULL;
		`,
	},
	{
		name: "game_sessions journal",
		sql: `
			CREATE TABLE IF NOT EXISTS game_sessions (
				id UUID PRIMARY KEY,
				user_id BIGINT NOT NULL,
				game VARCHAR(50) NOT NULL,
				level INT NOT NULL,
				stake BIGINT NOT NULL CHECK (stake > 0),
				hazards JSONB NOT NULL,
				progress INT NOT NULL DEFAULT 0,
				state VARCHAR(20) NOT NULL,
				target VARCHAR(20),
				credit BIGINT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_game_sessions_open
				ON game_sessions(state) WHERE state IN ('active', 'settling');
		`,
	},
	{
		name: "referral_accounts table",
		sql: `
			CREATE TABLE IF NOT EXISTS referral_accounts (
				user_id BIGINT PRIMARY KEY,
				referrer_id BIGINT,
				ref_balance BIGINT NOT NULL DEFAULT 0,
				total_earned BIGINT NOT NULL DEFAULT 0,
				total_withdrawn BIGINT NOT NULL DEFAULT 0,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_referral_accounts_referrer ON referral_accounts(referrer_id);
		`,
	},
}

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db Execer) error {
	log.Info().Msg("Running database migrations...")

	for i, m := range migrations {
		if _, err := db.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", i+1, m.name, err)
		}
		log.Info().Int("migration", i+1).Str("name", m.name).Msg("Migration applied")
	}

	log.Info().Msg("All migrations completed successfully")
	return nil
}
