package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when no live session exists for the jti.
	ErrNotFound = errors.New("session not found")
	// ErrDuplicate is returned by Create when the jti is already registered.
	ErrDuplicate = errors.New("session already exists")
	// ErrUnavailable matches every backend transport failure.
	ErrUnavailable = errors.New("session registry unavailable")
	// ErrRedisUnavailable wraps Redis transport failures. It matches ErrUnavailable.
	ErrRedisUnavailable = fmt.Errorf("%w: redis", ErrUnavailable)
	// ErrCorrupt is returned when a stored session blob cannot be decoded.
	ErrCorrupt = errors.New("session record corrupt")
	// ErrInvalid is returned by Create for a session missing required fields.
	ErrInvalid = errors.New("invalid session")
)

// Registry is the storage contract the Engine depends on. Implementations must be safe
// for concurrent use.
//
// Revoke is idempotent. RevokeAllForUser never removes exceptID and returns how many
// sessions it removed.
type Registry interface {
	Create(ctx context.Context, s *Session) error
	FindActive(ctx context.Context, id string, now time.Time) (*Session, error)
	Revoke(ctx context.Context, id string) error
	RevokeAllForUser(ctx context.Context, userID, exceptID string) (int, error)
	ListForUser(ctx context.Context, userID string, now time.Time) ([]*Session, error)
}

// Purger is implemented by registries that need an explicit sweep of expired records.
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// Pinger is implemented by registries backed by a remote service.
type Pinger interface {
	Ping(ctx context.Context) (time.Duration, error)
}

func validate(s *Session) error {
	if s == nil || s.ID == "" || s.UserID == "" {
		return ErrInvalid
	}
	if !s.ExpiresAt.After(s.CreatedAt) {
		return ErrInvalid
	}
	return nil
}
