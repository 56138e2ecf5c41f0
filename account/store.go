package account

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/lockout"
)

var (
	// ErrNotFound is returned when no account matches.
	ErrNotFound = errors.New("account not found")
	// ErrDuplicate matches every *DuplicateError.
	ErrDuplicate = errors.New("account already exists")
	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("account store unavailable")
)

// DuplicateError names the unique field that collided.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return "account already exists: duplicate " + e.Field
}

// Is lets errors.Is(err, ErrDuplicate) match.
func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

// Store persists accounts. Implementations must be safe for concurrent use.
//
// FindByIdentifier matches a normalised username or email. Insert assigns ID and fails
// with a *DuplicateError on a username or email collision. UpdateLockoutState applies t
// to the current lockout fields as one atomic read-modify-write.
type Store interface {
	FindByIdentifier(ctx context.Context, identifier string) (*Record, error)
	FindByID(ctx context.Context, id string) (*Record, error)
	Insert(ctx context.Context, rec *Record) error
	UpdateLockoutState(ctx context.Context, id string, t lockout.Transition) (lockout.State, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	SetActive(ctx context.Context, id string, active bool) error
}

type lockoutAdapter struct {
	store Store
}

// LockoutStore exposes the lockout fields of s as a lockout.Store.
func LockoutStore(s Store) lockout.Store {
	return lockoutAdapter{store: s}
}

func (a lockoutAdapter) Load(ctx context.Context, userID string) (lockout.State, error) {
	rec, err := a.store.FindByID(ctx, userID)
	if err != nil {
		return lockout.State{}, err
	}
	return rec.LockoutState(), nil
}

func (a lockoutAdapter) Apply(ctx context.Context, userID string, t lockout.Transition) (lockout.State, error) {
	return a.store.UpdateLockoutState(ctx, userID, t)
}
