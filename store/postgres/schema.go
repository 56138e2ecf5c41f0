package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	constraintUsername = "authcore_accounts_username_uniq"
	constraintEmail    = "authcore_accounts_email_uniq"
	constraintJTI      = "authcore_sessions_pkey"
)

// Schema creates the tables both stores expect. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS authcore_accounts (
	id                    BIGSERIAL PRIMARY KEY,
	public_id             UUID        NOT NULL UNIQUE,
	username              TEXT        NOT NULL,
	username_key          TEXT        NOT NULL,
	email                 TEXT        NOT NULL,
	email_key             TEXT        NOT NULL,
	password_hash         TEXT        NOT NULL,
	failed_login_attempts INTEGER     NOT NULL DEFAULT 0 CHECK (failed_login_attempts >= 0),
	locked_until          TIMESTAMPTZ NULL,
	is_active             BOOLEAN     NOT NULL DEFAULT TRUE,
	role                  TEXT        NOT NULL CHECK (role IN ('user', 'admin')),
	last_login_at         TIMESTAMPTZ NULL,
	created_at            TIMESTAMPTZ NOT NULL,
	CONSTRAINT authcore_accounts_username_uniq UNIQUE (username_key),
	CONSTRAINT authcore_accounts_email_uniq UNIQUE (email_key)
);

CREATE TABLE IF NOT EXISTS authcore_sessions (
	jti        TEXT        NOT NULL,
	user_id    TEXT        NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	ip         TEXT        NOT NULL DEFAULT '',
	user_agent TEXT        NOT NULL DEFAULT '',
	device     TEXT        NOT NULL DEFAULT '',
	CONSTRAINT authcore_sessions_pkey PRIMARY KEY (jti)
);

CREATE INDEX IF NOT EXISTS authcore_sessions_user_idx ON authcore_sessions (user_id);
CREATE INDEX IF NOT EXISTS authcore_sessions_expires_idx ON authcore_sessions (expires_at);
`

// EnsureSchema applies Schema.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("postgres_ensure_schema_failed: %w", err)
	}
	return nil
}
