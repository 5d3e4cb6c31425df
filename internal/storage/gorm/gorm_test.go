package gormstorage

import (
	"path/filepath"
	"testing"

	"github.com/hordenight/siege/internal/database"
	"github.com/hordenight/siege/internal/logging"
	"github.com/hordenight/siege/internal/model"
	"github.com/hordenight/siege/internal/storage"
	"github.com/hordenight/siege/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestBackend creates an initialized Backend on a fresh sqlite file.
func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	db, err := database.GetSqliteDBStandalone(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	b := New(Dependencies{DB: db, LogManager: logging.NewSlogManager()})
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

// Compile-time interface check
var _ storage.Backend = (*Backend)(nil)

func TestInit_NoDB(t *testing.T) {
	b := New(Dependencies{})
	assert.Error(t, b.Init())
	assert.False(t, b.Ready())
}

func TestNotReady(t *testing.T) {
	b := New(Dependencies{})
	_, err := b.Get("w")
	assert.ErrorIs(t, err, storage.ErrNotReady)
	assert.ErrorIs(t, b.Save("w", core.NewSiegeRecord(7)), storage.ErrNotReady)
}

func TestGet_Missing(t *testing.T) {
	b := newTestBackend(t)
	_, err := b.Get("w")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSaveAndGet(t *testing.T) {
	b := newTestBackend(t)

	rec := core.NewSiegeRecord(7)
	rec.State = core.StateActive
	rec.SiegeCount = 2
	rec.TargetZombies = 75
	rec.CurrentPhase = core.PhaseBreak
	rec.History.Push(core.HistoryEntry{Kills: 40, Target: 40, Day: 7, Direction: 3})
	require.NoError(t, b.Save("altis", rec))

	got, err := b.Get("altis")
	require.NoError(t, err)
	assert.Equal(t, core.StateActive, got.State)
	assert.Equal(t, 2, got.SiegeCount)
	assert.Equal(t, 75, got.TargetZombies)
	assert.Equal(t, core.PhaseBreak, got.CurrentPhase)
	assert.Equal(t, core.Direction(-1), got.LastDirection)
	require.Equal(t, 1, got.History.Len())
	assert.Equal(t, core.Direction(3), got.History.Entries()[0].Direction)
}

func TestSave_UpdatesInPlace(t *testing.T) {
	b := newTestBackend(t)

	rec := core.NewSiegeRecord(7)
	rec.KillsThisSiege = 30
	require.NoError(t, b.Save("w", rec))

	rec.KillsThisSiege = 0
	rec.NextSiegeDay = 14
	require.NoError(t, b.Save("w", rec))

	var count int64
	require.NoError(t, b.DB().Model(&model.SiegeRecord{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	got, err := b.Get("w")
	require.NoError(t, err)
	assert.Equal(t, 0, got.KillsThisSiege)
	assert.Equal(t, 14, got.NextSiegeDay)
}

func TestKeys(t *testing.T) {
	b := newTestBackend(t)
	for _, k := range []string{"tanoa", "altis"} {
		require.NoError(t, b.Save(k, core.NewSiegeRecord(7)))
	}

	keys, err := b.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"altis", "tanoa"}, keys)
}

func TestGetOrCreate(t *testing.T) {
	b := newTestBackend(t)

	rec, err := storage.GetOrCreate(b, "w", func() *core.SiegeRecord { return core.NewSiegeRecord(5) })
	require.NoError(t, err)
	assert.Equal(t, 5, rec.NextSiegeDay)

	rec, err = storage.GetOrCreate(b, "w", func() *core.SiegeRecord { return core.NewSiegeRecord(9) })
	require.NoError(t, err)
	assert.Equal(t, 5, rec.NextSiegeDay)
}
