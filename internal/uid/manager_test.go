package uid

import (
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	uiderrors "github.com/standardbeagle/uidmgr/internal/errors"
)

func newTestManager(t *testing.T, opts ...ManagerOption) *Manager {
	t.Helper()
	return NewManager(newTestStore(t, 8), opts...)
}

func TestManager_SharedUID(t *testing.T) {
	tests := []struct {
		name   string
		coarse bool
	}{
		{"shard_locks", false},
		{"coarse_lock", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(t, WithCoarseLock(tt.coarse))

			in := MustKeyUID(testKey{part: 1, id: 1})
			canonical, err := m.SharedUID(in)
			require.NoError(t, err)
			assert.Same(t, in, canonical)

			other, err := m.SharedUID(MustKeyUID(testKey{part: 1, id: 1}))
			require.NoError(t, err)
			assert.Same(t, canonical, other)
			assert.True(t, other.Equal(in))
		})
	}
}

func TestManager_SharedKeyUID(t *testing.T) {
	m := newTestManager(t)

	a, err := m.SharedKeyUID(testKey{id: 5})
	require.NoError(t, err)
	b, err := m.SharedKeyUID(testKey{id: 5})
	require.NoError(t, err)
	assert.Same(t, a, b)

	_, err = m.SharedKeyUID(nil)
	assert.ErrorIs(t, err, uiderrors.ErrInvalidArgument)

	_, err = m.SharedUID(nil)
	assert.ErrorIs(t, err, uiderrors.ErrInvalidArgument)
}

func TestManager_ConcurrentCoarse(t *testing.T) {
	m := newTestManager(t, WithCoarseLock(true))

	const workers = 32
	results := make([]*UID, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = m.SharedKeyUID(testKey{id: 11})
		}(i)
	}
	wg.Wait()

	for _, u := range results {
		assert.Same(t, results[0], u)
	}
}

func TestManager_ClearAndDispose(t *testing.T) {
	m := newTestManager(t)

	a, _ := m.SharedKeyUID(testKey{part: 3, id: 1})
	b, _ := m.SharedKeyUID(testKey{part: 4, id: 1})
	a.setCached(1)
	b.setCached(2)

	assert.Equal(t, 1, m.ClearPartition(3))
	_, ok := a.Cached()
	assert.False(t, ok)
	_, ok = b.Cached()
	assert.True(t, ok)

	m.DisposeAll()
	stats := m.Stats()
	assert.Zero(t, stats.Resident)
	assert.Equal(t, 8, stats.Shards)
	assert.Same(t, m.store, m.Store())

	runtime.KeepAlive(a)
	runtime.KeepAlive(b)
}
