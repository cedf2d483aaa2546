package session

import (
	"sync"
	"time"
)

// Store persists one conversation State per user id.
// Load reports absence (not an error) for missing, corrupt or unreadable
// entries, so a broken document never blocks a fresh conversation.
// Save is idempotent, last write wins.
type Store interface {
	Load(userID int64) (*State, bool)
	Save(userID int64, state *State) error
	Purge(olderThan time.Duration) (int, error)
}

// MemoryStore keeps sessions in process memory. Used by tests and as the
// fallback when no persistence path is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]*State)}
}

func (m *MemoryStore) Load(userID int64) (*State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	if !ok {
		return nil, false
	}
	cp := *s
	cp.Messages = append([]Message{}, s.Messages...)
	return &cp, true
}

func (m *MemoryStore) Save(userID int64, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *state
	cp.Messages = append([]Message{}, state.Messages...)
	m.sessions[userID] = &cp
	return nil
}

func (m *MemoryStore) Purge(olderThan time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().UTC().Add(-olderThan)
	n := 0
	for id, s := range m.sessions {
		if s.UpdatedAt.Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}
