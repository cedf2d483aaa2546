package chat

import (
	"context"
	"sync"
)

// Manager hands out one orchestrator per user, creating and loading it on
// first use.
type Manager struct {
	mu    sync.Mutex
	orchs map[int64]*Orchestrator
	newFn func(userID int64) *Orchestrator
}

func NewManager(newFn func(userID int64) *Orchestrator) *Manager {
	return &Manager{
		orchs: make(map[int64]*Orchestrator),
		newFn: newFn,
	}
}

func (m *Manager) For(ctx context.Context, userID int64) *Orchestrator {
	m.mu.Lock()
	o, ok := m.orchs[userID]
	if !ok {
		o = m.newFn(userID)
		m.orchs[userID] = o
	}
	m.mu.Unlock()

	if !ok {
		o.Start(ctx)
	}
	return o
}
