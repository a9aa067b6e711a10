package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/jamctl/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBoltStore_RecordAssignsIdentity(t *testing.T) {
	store := newTestStore(t)

	entry := &types.HistoryEntry{Kind: types.HistoryInstall, Version: "nightly-2025-12-29"}
	require.NoError(t, store.Record(entry))

	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.Timestamp.IsZero())
}

func TestBoltStore_ListNewestFirst(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Record(&types.HistoryEntry{Kind: types.HistoryInstall, Version: "nightly-2025-12-01", Timestamp: base}))
	require.NoError(t, store.Record(&types.HistoryEntry{Kind: types.HistoryStart, PID: 10, Timestamp: base.Add(time.Hour)}))
	require.NoError(t, store.Record(&types.HistoryEntry{Kind: types.HistoryStop, PID: 10, Timestamp: base.Add(2 * time.Hour)}))
	require.NoError(t, store.Record(&types.HistoryEntry{Kind: types.HistoryInstall, Version: "nightly-2025-12-29", Timestamp: base.Add(3 * time.Hour)}))

	all, err := store.List("", 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "nightly-2025-12-29", all[0].Version)
	assert.Equal(t, types.HistoryStop, all[1].Kind)

	installs, err := store.List(types.HistoryInstall, 0)
	require.NoError(t, err)
	require.Len(t, installs, 2)
	assert.Equal(t, "nightly-2025-12-29", installs[0].Version)

	starts, err := store.List(types.HistoryStart, 0)
	require.NoError(t, err)
	require.Len(t, starts, 1)
	assert.Equal(t, 10, starts[0].PID)

	limited, err := store.List("", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestBoltStore_UnknownKind(t *testing.T) {
	store := newTestStore(t)
	assert.Error(t, store.Record(&types.HistoryEntry{Kind: "bogus"}))
	_, err := store.List("bogus", 0)
	assert.Error(t, err)
}

func TestBoltStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := NewBoltStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Record(&types.HistoryEntry{Kind: types.HistoryInstall, Version: "nightly-2025-12-29"}))
	require.NoError(t, store.Close())

	reopened, err := NewBoltStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	entries, err := reopened.List(types.HistoryInstall, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLedgerDoesNotHoldDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ledger := NewLedger(path)

	require.NoError(t, ledger.Record(&types.HistoryEntry{Kind: types.HistoryStart, PID: 42}))

	// A second opener must not block while the ledger is idle
	store, err := NewBoltStore(path)
	require.NoError(t, err)
	entries, err := store.List(types.HistoryStart, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 42, entries[0].PID)
	require.NoError(t, store.Close())

	entries, err = ledger.List("", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.NoError(t, ledger.Close())
}
