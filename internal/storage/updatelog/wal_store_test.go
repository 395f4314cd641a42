package updatelog

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/karatlabs/karat/internal/entity"
)

func entryWithID(id string) entity.UpdateLogEntry {
	return entity.UpdateLogEntry{
		ID:        id,
		Timestamp: time.Now().UTC(),
		Trigger:   entity.TriggerScheduled,
		Success:   true,
	}
}

func TestAppendAndRecent(t *testing.T) {
	store, err := NewWALStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	assert.Empty(t, store.Recent(10))

	for i := 0; i < 5; i++ {
		store.Append(entryWithID(fmt.Sprintf("run-%d", i)))
	}

	recent := store.Recent(3)
	require.Len(t, recent, 3)
	assert.Equal(t, "run-4", recent[0].ID, "most recent entry must come first")
	assert.Equal(t, "run-3", recent[1].ID)
	assert.Equal(t, "run-2", recent[2].ID)

	all := store.Recent(0)
	assert.Len(t, all, 5)
}

func TestCapacityEvictsOldest(t *testing.T) {
	store, err := NewWALStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	for i := 0; i < Capacity+5; i++ {
		store.Append(entryWithID(fmt.Sprintf("run-%d", i)))
	}

	all := store.Recent(0)
	require.Len(t, all, Capacity)
	assert.Equal(t, fmt.Sprintf("run-%d", Capacity+4), all[0].ID)
	assert.Equal(t, "run-5", all[len(all)-1].ID, "the oldest five entries must be evicted")
}

func TestRecentLimitLargerThanHistory(t *testing.T) {
	store, err := NewWALStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	store.Append(entryWithID("only"))
	recent := store.Recent(50)
	require.Len(t, recent, 1)
	assert.Equal(t, "only", recent[0].ID)
}

func TestSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewWALStore(dir, zap.NewNop())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		store.Append(entryWithID(fmt.Sprintf("run-%d", i)))
	}
	require.NoError(t, store.Close())

	reopened, err := NewWALStore(dir, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	recent := reopened.Recent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, "run-2", recent[0].ID)
}
