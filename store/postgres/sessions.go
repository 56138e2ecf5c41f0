package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrEthical07/authcore/session"
)

// SessionStore implements session.Registry, session.Purger and session.Pinger.
type SessionStore struct {
	pool *pgxpool.Pool
}

// NewSessionStore returns a SessionStore using pool.
func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

func (s *SessionStore) Create(ctx context.Context, sess *session.Session) error {
	if sess == nil || sess.ID == "" || sess.UserID == "" || !sess.ExpiresAt.After(sess.CreatedAt) {
		return session.ErrInvalid
	}
	const query = `
		INSERT INTO authcore_sessions (jti, user_id, created_at, expires_at, ip, user_agent, device)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, query,
		sess.ID,
		sess.UserID,
		sess.CreatedAt,
		sess.ExpiresAt,
		sess.Metadata.IP,
		sess.Metadata.UserAgent,
		sess.Metadata.Device,
	)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok && constraint == constraintJTI {
			return session.ErrDuplicate
		}
		return fmt.Errorf("%w: postgres_session_create_failed: %v", session.ErrUnavailable, err)
	}
	return nil
}

func (s *SessionStore) FindActive(ctx context.Context, id string, now time.Time) (*session.Session, error) {
	const query = `
		SELECT jti, user_id, created_at, expires_at, ip, user_agent, device
		FROM authcore_sessions
		WHERE jti = $1 AND expires_at > $2`

	sess, err := scanSession(s.pool.QueryRow(ctx, query, id, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("%w: postgres_session_find_failed: %v", session.ErrUnavailable, err)
	}
	return sess, nil
}

func (s *SessionStore) Revoke(ctx context.Context, id string) error {
	const query = `DELETE FROM authcore_sessions WHERE jti = $1`
	if _, err := s.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("%w: postgres_session_revoke_failed: %v", session.ErrUnavailable, err)
	}
	return nil
}

func (s *SessionStore) RevokeAllForUser(ctx context.Context, userID, exceptID string) (int, error) {
	const query = `DELETE FROM authcore_sessions WHERE user_id = $1 AND jti <> $2`
	tag, err := s.pool.Exec(ctx, query, userID, exceptID)
	if err != nil {
		return 0, fmt.Errorf("%w: postgres_session_revoke_all_failed: %v", session.ErrUnavailable, err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *SessionStore) ListForUser(ctx context.Context, userID string, now time.Time) ([]*session.Session, error) {
	const query = `
		SELECT jti, user_id, created_at, expires_at, ip, user_agent, device
		FROM authcore_sessions
		WHERE user_id = $1 AND expires_at > $2
		ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query, userID, now)
	if err != nil {
		return nil, fmt.Errorf("%w: postgres_session_list_failed: %v", session.ErrUnavailable, err)
	}
	defer rows.Close()

	out := []*session.Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: postgres_session_list_scan_failed: %v", session.ErrUnavailable, err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: postgres_session_list_failed: %v", session.ErrUnavailable, err)
	}
	return out, nil
}

// PurgeExpired deletes every session with expires_at <= now.
func (s *SessionStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	const query = `DELETE FROM authcore_sessions WHERE expires_at <= $1`
	tag, err := s.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("%w: postgres_session_purge_failed: %v", session.ErrUnavailable, err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *SessionStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := Ping(ctx, s.pool); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", session.ErrUnavailable, err)
	}
	return time.Since(start), nil
}

func scanSession(row pgx.Row) (*session.Session, error) {
	var sess session.Session
	if err := row.Scan(
		&sess.ID,
		&sess.UserID,
		&sess.CreatedAt,
		&sess.ExpiresAt,
		&sess.Metadata.IP,
		&sess.Metadata.UserAgent,
		&sess.Metadata.Device,
	); err != nil {
		return nil, err
	}
	return &sess, nil
}
