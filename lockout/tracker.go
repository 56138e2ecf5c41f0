package lockout

import (
	"context"
	"errors"
	"time"
)

// Tracker drives the lockout state machine for every account through one Store.
type Tracker struct {
	store  Store
	policy Policy
	now    func() time.Time
	locks  *KeyedMutex
}

// NewTracker validates policy and returns a Tracker. A nil now defaults to time.Now.
func NewTracker(store Store, policy Policy, now func() time.Time) (*Tracker, error) {
	if store == nil {
		return nil, errors.New("lockout store is nil")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	if c, ok := store.(clockUser); ok {
		c.useClock(now)
	}
	return &Tracker{
		store:  store,
		policy: policy,
		now:    now,
		locks:  NewKeyedMutex(),
	}, nil
}

// Policy returns the configured thresholds.
func (t *Tracker) Policy() Policy {
	return t.policy
}

// Acquire serialises attempts for userID within this process. Callers must invoke the
// returned release function once the attempt is finished.
func (t *Tracker) Acquire(ctx context.Context, userID string) (func(), error) {
	return t.locks.Lock(ctx, userID)
}

// Check loads the current state and clears an expired lock. It returns a *LockedError
// while the lock is still in force.
func (t *Tracker) Check(ctx context.Context, userID string) (State, error) {
	now := t.now()
	state, err := t.store.Load(ctx, userID)
	if err != nil {
		return State{}, err
	}
	if state.LockedAt(now) {
		return state, &LockedError{Until: state.LockedUntil}
	}
	if state.ExpiredAt(now) {
		state, err = t.store.Apply(ctx, userID, t.policy.Expire(now))
		if err != nil {
			return State{}, err
		}
		if state.LockedAt(now) {
			return state, &LockedError{Until: state.LockedUntil}
		}
	}
	return state, nil
}

// RecordFailure counts one failed attempt and returns the resulting state. The caller
// inspects LockedAt to decide whether this failure locked the account.
func (t *Tracker) RecordFailure(ctx context.Context, userID string) (State, error) {
	return t.store.Apply(ctx, userID, t.policy.Fail(t.now()))
}

// RecordSuccess returns the account to Unlocked(0). The reset is always applied through
// the store, which leaves an already-zero state unwritten.
func (t *Tracker) RecordSuccess(ctx context.Context, userID string) error {
	_, err := t.store.Apply(ctx, userID, Reset())
	return err
}

// Unlock clears any counter or lock for userID.
func (t *Tracker) Unlock(ctx context.Context, userID string) error {
	_, err := t.store.Apply(ctx, userID, Reset())
	return err
}

// Status returns the current state without mutating it. A lock that has run out is
// reported as Unlocked(0).
func (t *Tracker) Status(ctx context.Context, userID string) (State, error) {
	state, err := t.store.Load(ctx, userID)
	if err != nil {
		return State{}, err
	}
	if state.ExpiredAt(t.now()) {
		return State{}, nil
	}
	return state, nil
}

// Remaining is shorthand for Policy().Remaining.
func (t *Tracker) Remaining(s State) int {
	return t.policy.Remaining(s)
}
