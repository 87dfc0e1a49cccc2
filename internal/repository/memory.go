package repository

import (
	"context"
	"sync"
	"sync/atomic"

	uiderrors "github.com/standardbeagle/uidmgr/internal/errors"
	"github.com/standardbeagle/uidmgr/internal/keys"
	"github.com/standardbeagle/uidmgr/internal/uid"
)

// Memory is an in-process repository
type Memory struct {
	mu      sync.RWMutex
	records map[keys.Key]*Record
	gets    atomic.Int64
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory repository
func NewMemory() *Memory {
	return &Memory{records: make(map[keys.Key]*Record)}
}

// Put stores a copy of r under r.Key, replacing any previous record
func (m *Memory) Put(ctx context.Context, r *Record) error {
	if r == nil {
		return uiderrors.NewArgumentError("Put", "record", "must not be nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.Key] = r.clone()
	return nil
}

// Get returns a copy of the record stored under key, or nil when there is
// none. Disposing the returned record leaves the stored one intact.
func (m *Memory) Get(ctx context.Context, key uid.Key) (any, error) {
	m.gets.Add(1)
	k, err := asKey("Get", key)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.records[k]; ok {
		return r.clone(), nil
	}
	return nil, nil
}

// Delete removes the record under key
func (m *Memory) Delete(key keys.Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[key]
	delete(m.records, key)
	return ok
}

// DropPartition removes every record of unit and returns how many were dropped
func (m *Memory) DropPartition(_ context.Context, unit uint32) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.records {
		if k.Unit == unit {
			delete(m.records, k)
			n++
		}
	}
	return n, nil
}

func (m *Memory) PartitionOf(key uid.Key) int {
	return keys.Partition(key)
}

// Len returns the number of stored records
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Gets returns the number of Get calls served
func (m *Memory) Gets() int64 {
	return m.gets.Load()
}
