package account

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/MrEthical07/authcore/lockout"
)

// MemoryStore is an in-process Store. A single mutex makes every update, including
// UpdateLockoutState, atomic.
type MemoryStore struct {
	mu         sync.RWMutex
	nextID     int64
	byID       map[string]*Record
	byUsername map[string]string
	byEmail    map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:       make(map[string]*Record),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
	}
}

func (m *MemoryStore) FindByIdentifier(_ context.Context, identifier string) (*Record, error) {
	key := NormalizeIdentifier(identifier)
	if key == "" {
		return nil, ErrNotFound
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byUsername[key]
	if !ok {
		id, ok = m.byEmail[key]
	}
	if !ok {
		return nil, ErrNotFound
	}
	return m.byID[id].Clone(), nil
}

func (m *MemoryStore) FindByID(_ context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (m *MemoryStore) Insert(_ context.Context, rec *Record) error {
	username := NormalizeIdentifier(rec.Username)
	email := NormalizeIdentifier(rec.Email)

	m.mu.Lock()
	defer m.mu.Unlock()

	// Usernames and emails share one lookup space.
	if _, ok := m.byUsername[username]; ok {
		return &DuplicateError{Field: "username"}
	}
	if _, ok := m.byEmail[username]; ok {
		return &DuplicateError{Field: "username"}
	}
	if _, ok := m.byEmail[email]; ok {
		return &DuplicateError{Field: "email"}
	}
	if _, ok := m.byUsername[email]; ok {
		return &DuplicateError{Field: "email"}
	}

	m.nextID++
	rec.ID = strconv.FormatInt(m.nextID, 10)
	m.byID[rec.ID] = rec.Clone()
	m.byUsername[username] = rec.ID
	m.byEmail[email] = rec.ID
	return nil
}

func (m *MemoryStore) UpdateLockoutState(_ context.Context, id string, t lockout.Transition) (lockout.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byID[id]
	if !ok {
		return lockout.State{}, ErrNotFound
	}
	next := t(rec.LockoutState())
	rec.SetLockoutState(next)
	return next, nil
}

func (m *MemoryStore) UpdatePasswordHash(_ context.Context, id, hash string) error {
	return m.update(id, func(r *Record) { r.PasswordHash = hash })
}

func (m *MemoryStore) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	return m.update(id, func(r *Record) { r.LastLoginAt = at })
}

func (m *MemoryStore) SetActive(_ context.Context, id string, active bool) error {
	return m.update(id, func(r *Record) { r.IsActive = active })
}

// Len returns the number of stored accounts.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

func (m *MemoryStore) update(id string, fn func(*Record)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	fn(rec)
	return nil
}
