// internal/storage/storage_test.go
package storage_test

import (
	"errors"
	"testing"

	"github.com/hordenight/siege/internal/storage"
	"github.com/hordenight/siege/internal/storage/memory"
	"github.com/hordenight/siege/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreate_NotReady(t *testing.T) {
	b := memory.New()
	_, err := storage.GetOrCreate(b, "w", func() *core.SiegeRecord { return core.NewSiegeRecord(7) })
	assert.ErrorIs(t, err, storage.ErrNotReady)
}

func TestGetOrCreate_Idempotent(t *testing.T) {
	b := memory.New()
	require.NoError(t, b.Init())

	calls := 0
	newDefault := func() *core.SiegeRecord {
		calls++
		return core.NewSiegeRecord(7)
	}

	first, err := storage.GetOrCreate(b, "w", newDefault)
	require.NoError(t, err)
	first.SiegeCount = 4
	require.NoError(t, b.Save("w", first))

	second, err := storage.GetOrCreate(b, "w", newDefault)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 4, second.SiegeCount)
	assert.Equal(t, 7, second.NextSiegeDay)
}

type failingBackend struct{ memory.Backend }

func (f *failingBackend) Ready() bool { return true }
func (f *failingBackend) Get(string) (*core.SiegeRecord, error) {
	return nil, errors.New("disk on fire")
}

func TestGetOrCreate_PropagatesErrors(t *testing.T) {
	_, err := storage.GetOrCreate(&failingBackend{}, "w", func() *core.SiegeRecord { return core.NewSiegeRecord(7) })
	assert.ErrorContains(t, err, "disk on fire")
}

func TestClone_CopiesHistory(t *testing.T) {
	rec := core.NewSiegeRecord(7)
	rec.History.Push(core.HistoryEntry{Day: 7})

	cp := storage.Clone(rec)
	cp.History.Push(core.HistoryEntry{Day: 14})
	cp.SiegeCount = 9

	assert.Equal(t, 1, rec.History.Len())
	assert.Equal(t, 0, rec.SiegeCount)
	assert.Nil(t, storage.Clone(nil))
}
