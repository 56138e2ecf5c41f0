package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrEthical07/authcore/account"
	"github.com/MrEthical07/authcore/lockout"
)

const accountColumns = `id, public_id::text, username, email, password_hash, failed_login_attempts,
	locked_until, is_active, role, last_login_at, created_at`

// AccountStore implements account.Store.
type AccountStore struct {
	pool *pgxpool.Pool
}

// NewAccountStore returns an AccountStore using pool.
func NewAccountStore(pool *pgxpool.Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

func (s *AccountStore) FindByIdentifier(ctx context.Context, identifier string) (*account.Record, error) {
	key := account.NormalizeIdentifier(identifier)
	if key == "" {
		return nil, account.ErrNotFound
	}
	const query = `SELECT ` + accountColumns + `
		FROM authcore_accounts
		WHERE username_key = $1 OR email_key = $1
		LIMIT 1`

	rec, err := scanAccount(s.pool.QueryRow(ctx, query, key))
	if err != nil {
		return nil, mapAccountErr("find_by_identifier", err)
	}
	return rec, nil
}

func (s *AccountStore) FindByID(ctx context.Context, id string) (*account.Record, error) {
	pk, ok := parseID(id)
	if !ok {
		return nil, account.ErrNotFound
	}
	const query = `SELECT ` + accountColumns + ` FROM authcore_accounts WHERE id = $1`

	rec, err := scanAccount(s.pool.QueryRow(ctx, query, pk))
	if err != nil {
		return nil, mapAccountErr("find_by_id", err)
	}
	return rec, nil
}

func (s *AccountStore) Insert(ctx context.Context, rec *account.Record) error {
	const query = `
		INSERT INTO authcore_accounts (
			public_id, username, username_key, email, email_key, password_hash,
			failed_login_attempts, locked_until, is_active, role, last_login_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`

	publicID, err := uuid.Parse(rec.PublicID)
	if err != nil {
		return fmt.Errorf("postgres_account_insert_failed: invalid public id: %w", err)
	}

	var id int64
	err = s.pool.QueryRow(ctx, query,
		[16]byte(publicID),
		rec.Username,
		account.NormalizeIdentifier(rec.Username),
		rec.Email,
		account.NormalizeIdentifier(rec.Email),
		rec.PasswordHash,
		rec.FailedLoginAttempts,
		nullableTime(rec.LockedUntil),
		rec.IsActive,
		string(rec.Role),
		nullableTime(rec.LastLoginAt),
		rec.CreatedAt,
	).Scan(&id)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			switch constraint {
			case constraintEmail:
				return &account.DuplicateError{Field: "email"}
			default:
				return &account.DuplicateError{Field: "username"}
			}
		}
		return fmt.Errorf("%w: postgres_account_insert_failed: %v", account.ErrUnavailable, err)
	}
	rec.ID = strconv.FormatInt(id, 10)
	return nil
}

func (s *AccountStore) UpdateLockoutState(ctx context.Context, id string, t lockout.Transition) (lockout.State, error) {
	pk, ok := parseID(id)
	if !ok {
		return lockout.State{}, account.ErrNotFound
	}

	var next lockout.State
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		const selectQuery = `
			SELECT failed_login_attempts, locked_until
			FROM authcore_accounts
			WHERE id = $1
			FOR UPDATE`

		var (
			current lockout.State
			until   *time.Time
		)
		if err := tx.QueryRow(ctx, selectQuery, pk).Scan(&current.FailedAttempts, &until); err != nil {
			return err
		}
		if until != nil {
			current.LockedUntil = *until
		}

		next = t(current)
		if next.Equal(current) {
			return nil
		}

		const updateQuery = `
			UPDATE authcore_accounts
			SET failed_login_attempts = $2, locked_until = $3
			WHERE id = $1`
		_, err := tx.Exec(ctx, updateQuery, pk, next.FailedAttempts, nullableTime(next.LockedUntil))
		return err
	})
	if err != nil {
		return lockout.State{}, mapAccountErr("update_lockout", err)
	}
	return next, nil
}

func (s *AccountStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	const query = `UPDATE authcore_accounts SET password_hash = $2 WHERE id = $1`
	return s.exec(ctx, "update_password_hash", query, id, hash)
}

func (s *AccountStore) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE authcore_accounts SET last_login_at = $2 WHERE id = $1`
	return s.exec(ctx, "update_last_login", query, id, at)
}

func (s *AccountStore) SetActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE authcore_accounts SET is_active = $2 WHERE id = $1`
	return s.exec(ctx, "set_active", query, id, active)
}

func (s *AccountStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := Ping(ctx, s.pool); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", account.ErrUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *AccountStore) exec(ctx context.Context, op, query, id string, arg any) error {
	pk, ok := parseID(id)
	if !ok {
		return account.ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, query, pk, arg)
	if err != nil {
		return mapAccountErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return account.ErrNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (*account.Record, error) {
	var (
		rec       account.Record
		id        int64
		role      string
		lockedTil *time.Time
		lastLogin *time.Time
	)
	err := row.Scan(
		&id,
		&rec.PublicID,
		&rec.Username,
		&rec.Email,
		&rec.PasswordHash,
		&rec.FailedLoginAttempts,
		&lockedTil,
		&rec.IsActive,
		&role,
		&lastLogin,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.ID = strconv.FormatInt(id, 10)
	rec.Role = account.Role(role)
	if lockedTil != nil {
		rec.LockedUntil = *lockedTil
	}
	if lastLogin != nil {
		rec.LastLoginAt = *lastLogin
	}
	return &rec, nil
}

func mapAccountErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return account.ErrNotFound
	}
	return fmt.Errorf("%w: postgres_account_%s_failed: %v", account.ErrUnavailable, op, err)
}

func parseID(id string) (int64, bool) {
	pk, err := strconv.ParseInt(id, 10, 64)
	if err != nil || pk <= 0 {
		return 0, false
	}
	return pk, true
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
