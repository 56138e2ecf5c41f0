package lockout

import (
	"errors"
	"time"
)

const (
	// DefaultThreshold is the number of consecutive failures that locks an account.
	DefaultThreshold = 5
	// DefaultDuration is how long a lock lasts.
	DefaultDuration = 30 * time.Minute
)

// State is the persisted lockout state of one account. LockedUntil is zero while the
// account is unlocked.
type State struct {
	FailedAttempts int
	LockedUntil    time.Time
}

// IsZero reports whether s is Unlocked(0).
func (s State) IsZero() bool {
	return s.FailedAttempts == 0 && s.LockedUntil.IsZero()
}

// Equal reports whether s and o hold the same counter and lock deadline.
func (s State) Equal(o State) bool {
	return s.FailedAttempts == o.FailedAttempts && s.LockedUntil.Equal(o.LockedUntil)
}

// LockedAt reports whether the lock is still in force at now.
func (s State) LockedAt(now time.Time) bool {
	return !s.LockedUntil.IsZero() && now.Before(s.LockedUntil)
}

// ExpiredAt reports whether s carries a lock that has run out at now.
func (s State) ExpiredAt(now time.Time) bool {
	return !s.LockedUntil.IsZero() && !now.Before(s.LockedUntil)
}

// Transition maps the current state to the next one. A Store applies it atomically.
type Transition func(State) State

// Policy holds the lockout thresholds.
type Policy struct {
	Threshold int
	Duration  time.Duration
}

// DefaultPolicy returns a policy of five failures and a thirty minute lock.
func DefaultPolicy() Policy {
	return Policy{Threshold: DefaultThreshold, Duration: DefaultDuration}
}

// Validate checks the policy bounds.
func (p Policy) Validate() error {
	if p.Threshold <= 0 {
		return errors.New("lockout threshold must be > 0")
	}
	if p.Duration <= 0 {
		return errors.New("lockout duration must be > 0")
	}
	return nil
}

// Fail returns the transition for one failed attempt observed at now.
//
// A live lock is left untouched so a racing attempt cannot extend the lock window. An
// expired lock restarts from zero before counting the failure.
func (p Policy) Fail(now time.Time) Transition {
	return func(s State) State {
		if s.LockedAt(now) {
			return s
		}
		if s.ExpiredAt(now) {
			s = State{}
		}
		s.FailedAttempts++
		if s.FailedAttempts >= p.Threshold {
			s.FailedAttempts = p.Threshold
			s.LockedUntil = now.Add(p.Duration)
		}
		return s
	}
}

// Expire returns the transition that clears a lock that has run out at now. Any other
// state is returned unchanged.
func (p Policy) Expire(now time.Time) Transition {
	return func(s State) State {
		if s.ExpiredAt(now) {
			return State{}
		}
		return s
	}
}

// Reset returns the transition to Unlocked(0).
func Reset() Transition {
	return func(State) State { return State{} }
}

// Remaining returns how many failures s may still absorb before locking.
func (p Policy) Remaining(s State) int {
	left := p.Threshold - s.FailedAttempts
	if left < 0 {
		return 0
	}
	return left
}
