package repository

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/uidmgr/internal/keys"
	"github.com/standardbeagle/uidmgr/internal/uid"
)

func newTestManager(t *testing.T) *uid.Manager {
	t.Helper()
	store, err := uid.NewStore(uid.StoreConfig{Shards: 4, Partition: keys.Partition})
	require.NoError(t, err)
	return uid.NewManager(store)
}

func fnKey(unit uint32, start uint32, name string) keys.Key {
	return keys.Key{Unit: unit, Kind: keys.KindFunction, File: 1, Start: start, End: start + 10, Name: name}
}
