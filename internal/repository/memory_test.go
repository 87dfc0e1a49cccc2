package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	uiderrors "github.com/standardbeagle/uidmgr/internal/errors"
	"github.com/standardbeagle/uidmgr/internal/uid"
)

func TestRecord_Capabilities(t *testing.T) {
	m := newTestManager(t)
	k := fnKey(1, 100, "main")

	r, err := NewRecord(m, k, "main")
	require.NoError(t, err)

	canonical, err := m.SharedKeyUID(k)
	require.NoError(t, err)
	assert.Same(t, canonical, r.UID())
	assert.Equal(t, 100, r.StartOffset())
	assert.Equal(t, 110, r.EndOffset())
	assert.Equal(t, "main", r.String())

	r.Text = "int main() {}"
	r.Attrs = map[string]string{"linkage": "external"}
	r.Dispose()
	assert.Empty(t, r.Text)
	assert.Nil(t, r.Attrs)

	unbound, err := NewRecord(nil, k, "")
	require.NoError(t, err)
	assert.Nil(t, unbound.UID())
	assert.Equal(t, k.String(), unbound.String())
}

func TestMemory_PutGet(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	repo := NewMemory()

	r, err := NewRecord(m, fnKey(1, 0, "f"), "f")
	require.NoError(t, err)
	require.NoError(t, repo.Put(ctx, r))

	got, err := repo.Get(ctx, r.Key)
	require.NoError(t, err)
	assert.Equal(t, r, got)
	assert.NotSame(t, r, got)
	assert.Same(t, r.UID(), got.(*Record).UID())

	missing, err := repo.Get(ctx, fnKey(1, 50, "g"))
	require.NoError(t, err)
	assert.Nil(t, missing)

	assert.EqualValues(t, 2, repo.Gets())
	assert.Equal(t, 1, repo.Len())
}

func TestMemory_DisposeKeepsStoredRecord(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	repo := NewMemory()
	provider := uid.NewProvider(repo, m)

	r, err := NewRecord(m, fnKey(3, 0, "g"), "g")
	require.NoError(t, err)
	r.Text = "void g() {}"
	r.Attrs = map[string]string{"linkage": "internal"}
	require.NoError(t, repo.Put(ctx, r))

	// Mutating the caller's record after Put does not reach the repository
	r.Attrs["linkage"] = "external"

	v, err := provider.Resolve(ctx, r.UID())
	require.NoError(t, err)
	provider.Dispose(v)
	assert.Empty(t, v.(*Record).Text)

	m.ClearPartition(3)
	v, err = provider.Resolve(ctx, r.UID())
	require.NoError(t, err)
	reloaded := v.(*Record)
	assert.Equal(t, "void g() {}", reloaded.Text)
	assert.Equal(t, map[string]string{"linkage": "internal"}, reloaded.Attrs)
}

func TestMemory_Errors(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()

	assert.ErrorIs(t, repo.Put(ctx, nil), uiderrors.ErrInvalidArgument)

	_, err := repo.Get(ctx, foreignKey{})
	assert.ErrorIs(t, err, uiderrors.ErrInvalidArgument)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = repo.Get(cancelled, fnKey(1, 0, "f"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemory_DeleteAndDropPartition(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()
	for i, unit := range []uint32{1, 1, 2} {
		require.NoError(t, repo.Put(ctx, &Record{Key: fnKey(unit, uint32(i), "x")}))
	}

	assert.True(t, repo.Delete(fnKey(2, 2, "x")))
	assert.False(t, repo.Delete(fnKey(2, 2, "x")))

	n, err := repo.DropPartition(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Zero(t, repo.Len())
}

func TestMemory_PartitionOf(t *testing.T) {
	repo := NewMemory()
	assert.Equal(t, 7, repo.PartitionOf(fnKey(7, 0, "")))
	assert.Equal(t, uid.NoPartition, repo.PartitionOf(foreignKey{}))
}

// foreignKey is a uid.Key the repositories do not store
type foreignKey struct{ uid.Key }

func (foreignKey) String() string { return "foreign" }
