package lockout

import (
	"context"
	"sync"
	"time"
)

// Store persists lockout state. Apply must run the transition as one atomic
// read-modify-write relative to every other Apply for the same user.
type Store interface {
	Load(ctx context.Context, userID string) (State, error)
	Apply(ctx context.Context, userID string, t Transition) (State, error)
}

const memorySweepInterval = time.Minute

// clockUser is implemented by stores that measure lifetimes against a clock. NewTracker
// hands its clock to a store that was not given one explicitly.
type clockUser interface {
	useClock(now func() time.Time)
}

type memoryEntry struct {
	state   State
	touched time.Time
}

// MemoryStore is an in-process Store guarded by a single mutex.
//
// An entry is reclaimed once its lock has run out, or once an unlocked counter has not
// been written for the retention period. Reclaimed entries read as Unlocked(0), the
// state Check would have restored anyway.
type MemoryStore struct {
	mu        sync.Mutex
	states    map[string]memoryEntry
	retention time.Duration
	now       func() time.Time
	fixed     bool
	lastSweep time.Time
}

// NewMemoryStore returns an empty MemoryStore with 24h retention. It adopts the clock
// of the first Tracker built on it.
func NewMemoryStore() *MemoryStore {
	return NewExpiringMemoryStore(0, nil)
}

// NewExpiringMemoryStore returns an empty MemoryStore. A zero retention selects 24h. A
// nil now selects time.Now until a Tracker supplies its clock.
func NewExpiringMemoryStore(retention time.Duration, now func() time.Time) *MemoryStore {
	if retention <= 0 {
		retention = defaultRetention
	}
	m := &MemoryStore{
		states:    make(map[string]memoryEntry),
		retention: retention,
		now:       now,
		fixed:     now != nil,
	}
	if now == nil {
		m.now = time.Now
	}
	return m
}

func (m *MemoryStore) useClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.fixed {
		m.now = now
		m.fixed = true
	}
}

func (m *MemoryStore) Load(_ context.Context, userID string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.states[userID]
	if !ok {
		return State{}, nil
	}
	if m.stale(e, m.now()) {
		delete(m.states, userID)
		return State{}, nil
	}
	return e.state, nil
}

func (m *MemoryStore) Apply(_ context.Context, userID string, t Transition) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)

	var current State
	if e, ok := m.states[userID]; ok && !m.stale(e, now) {
		current = e.state
	}
	next := t(current)
	switch {
	case next.IsZero():
		delete(m.states, userID)
	case !next.Equal(current):
		m.states[userID] = memoryEntry{state: next, touched: now}
	}
	return next, nil
}

// Len returns the number of entries currently held, reclaimable ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.states)
}

func (m *MemoryStore) stale(e memoryEntry, now time.Time) bool {
	if e.state.LockedAt(now) {
		return false
	}
	if e.state.ExpiredAt(now) {
		return true
	}
	return !now.Before(e.touched.Add(m.retention))
}

// sweep drops every stale entry at most once per memorySweepInterval. m.mu must be held.
func (m *MemoryStore) sweep(now time.Time) {
	if now.Sub(m.lastSweep) < memorySweepInterval {
		return
	}
	m.lastSweep = now
	for id, e := range m.states {
		if m.stale(e, now) {
			delete(m.states, id)
		}
	}
}
