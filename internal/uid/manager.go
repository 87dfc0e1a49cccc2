package uid

import (
	"sync"

	"github.com/standardbeagle/uidmgr/internal/debug"
)

// Manager is the entry point for handle interning. Construct one at startup
// and pass it to every component that needs canonical handles.
type Manager struct {
	store *Store

	// coarse serialises all store access when set
	coarse bool
	mu     sync.Mutex
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithCoarseLock wraps every store operation in a single manager lock
func WithCoarseLock(enabled bool) ManagerOption {
	return func(m *Manager) {
		m.coarse = enabled
	}
}

// NewManager creates a manager that owns store
func NewManager(store *Store, opts ...ManagerOption) *Manager {
	m := &Manager{store: store}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) lock() func() {
	if !m.coarse {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

// SharedUID returns the canonical instance equal to u
func (m *Manager) SharedUID(u *UID) (*UID, error) {
	defer m.lock()()
	return m.store.InternOrGet(u)
}

// SharedKeyUID builds a persisted handle for key and returns its canonical instance
func (m *Manager) SharedKeyUID(key Key) (*UID, error) {
	u, err := NewKeyUID(key)
	if err != nil {
		return nil, err
	}
	return m.SharedUID(u)
}

// ClearPartition invalidates cached entities of partition p
func (m *Manager) ClearPartition(p int) int {
	defer m.lock()()
	n := m.store.ClearPartition(p)
	debug.LogUID("cleared %d handles of partition %d\n", n, p)
	return n
}

// DisposeAll drops every interned handle
func (m *Manager) DisposeAll() {
	defer m.lock()()
	m.store.DisposeAll()
	debug.LogUID("disposed all shards\n")
}

// Store returns the underlying interning store
func (m *Manager) Store() *Store {
	return m.store
}

// Stats returns the store counters
func (m *Manager) Stats() StoreStats {
	defer m.lock()()
	return m.store.Stats()
}
