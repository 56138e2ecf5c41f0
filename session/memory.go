package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Registry. It also implements Purger.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]*Session
	byUser map[string]map[string]struct{}
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]*Session),
		byUser: make(map[string]map[string]struct{}),
	}
}

func (m *MemoryStore) Create(_ context.Context, s *Session) error {
	if err := validate(s); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[s.ID]; ok {
		return ErrDuplicate
	}
	m.byID[s.ID] = s.clone()
	ids := m.byUser[s.UserID]
	if ids == nil {
		ids = make(map[string]struct{})
		m.byUser[s.UserID] = ids
	}
	ids[s.ID] = struct{}{}
	return nil
}

func (m *MemoryStore) FindActive(_ context.Context, id string, now time.Time) (*Session, error) {
	m.mu.RLock()
	s, ok := m.byID[id]
	if ok && s.ActiveAt(now) {
		out := s.clone()
		m.mu.RUnlock()
		return out, nil
	}
	m.mu.RUnlock()

	if ok {
		m.mu.Lock()
		if cur, still := m.byID[id]; still && !cur.ActiveAt(now) {
			m.removeLocked(cur)
		}
		m.mu.Unlock()
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) Revoke(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.byID[id]; ok {
		m.removeLocked(s)
	}
	return nil
}

func (m *MemoryStore) RevokeAllForUser(_ context.Context, userID, exceptID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	revoked := 0
	for id := range m.byUser[userID] {
		if id == exceptID {
			continue
		}
		if s, ok := m.byID[id]; ok {
			m.removeLocked(s)
			revoked++
		}
	}
	return revoked, nil
}

func (m *MemoryStore) ListForUser(_ context.Context, userID string, now time.Time) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Session, 0, len(m.byUser[userID]))
	for id := range m.byUser[userID] {
		if s, ok := m.byID[id]; ok && s.ActiveAt(now) {
			out = append(out, s.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// PurgeExpired removes every session that is no longer live at now.
func (m *MemoryStore) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	purged := 0
	for _, s := range m.byID {
		if !s.ActiveAt(now) {
			m.removeLocked(s)
			purged++
		}
	}
	return purged, nil
}

// Len returns the number of stored sessions, live or not.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

func (m *MemoryStore) removeLocked(s *Session) {
	delete(m.byID, s.ID)
	if ids := m.byUser[s.UserID]; ids != nil {
		delete(ids, s.ID)
		if len(ids) == 0 {
			delete(m.byUser, s.UserID)
		}
	}
}
