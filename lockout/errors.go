package lockout

import (
	"errors"
	"time"
)

var (
	// ErrLocked matches every *LockedError.
	ErrLocked = errors.New("account locked")
	// ErrUnavailable indicates the lockout backend is unreachable.
	ErrUnavailable = errors.New("lockout backend unavailable")
	// ErrContention is returned when an optimistic transaction keeps losing races.
	ErrContention = errors.New("lockout state contention")
)

// LockedError reports an active lock and when it ends.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return "account locked until " + e.Until.UTC().Format(time.RFC3339)
}

// Is lets errors.Is(err, ErrLocked) match.
func (e *LockedError) Is(target error) bool {
	return target == ErrLocked
}
