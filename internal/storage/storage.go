// internal/storage/storage.go
package storage

import (
	"errors"

	"github.com/hordenight/siege/pkg/core"
)

var (
	// ErrNotReady is returned by every accessor until Init has succeeded.
	ErrNotReady = errors.New("storage not ready")
	// ErrNotFound is returned by Get for a key that was never saved.
	ErrNotFound = errors.New("record not found")
)

// Backend is the keyed document store all storage implementations must satisfy.
// Records handed in and out are copies; callers own them.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error
	Ready() bool

	// Documents
	Get(key string) (*core.SiegeRecord, error)
	Save(key string, rec *core.SiegeRecord) error
	Keys() ([]string, error)
}

// GetOrCreate loads the record under key, or saves and returns newDefault()
// when the key is absent. Calling it again for the same key returns the
// stored record unchanged.
func GetOrCreate(b Backend, key string, newDefault func() *core.SiegeRecord) (*core.SiegeRecord, error) {
	if !b.Ready() {
		return nil, ErrNotReady
	}
	rec, err := b.Get(key)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	rec = newDefault()
	if err := b.Save(key, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Clone deep-copies a record so backends never share history slices with callers.
func Clone(rec *core.SiegeRecord) *core.SiegeRecord {
	if rec == nil {
		return nil
	}
	out := *rec
	out.History = core.NewHistory(rec.History.Entries())
	return &out
}
