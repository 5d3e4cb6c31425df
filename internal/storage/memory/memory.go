// internal/storage/memory/memory.go
package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hordenight/siege/internal/storage"
	"github.com/hordenight/siege/pkg/core"
)

// Backend keeps siege documents in process memory. Nothing survives a restart.
type Backend struct {
	records map[string]*core.SiegeRecord
	ready   bool
	mu      sync.RWMutex
}

// New creates a new memory backend
func New() *Backend {
	return &Backend{}
}

// Init initializes the backend
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.records == nil {
		b.records = make(map[string]*core.SiegeRecord)
	}
	b.ready = true
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ready = false
	return nil
}

// Ready reports whether Init has run.
func (b *Backend) Ready() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ready
}

// Get returns a copy of the record stored under key.
func (b *Backend) Get(key string) (*core.SiegeRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.ready {
		return nil, storage.ErrNotReady
	}
	rec, ok := b.records[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	return storage.Clone(rec), nil
}

// Save stores a copy of rec under key.
func (b *Backend) Save(key string, rec *core.SiegeRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready {
		return storage.ErrNotReady
	}
	b.records[key] = storage.Clone(rec)
	return nil
}

// Keys lists stored keys in sorted order.
func (b *Backend) Keys() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.ready {
		return nil, storage.ErrNotReady
	}
	keys := make([]string, 0, len(b.records))
	for k := range b.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
