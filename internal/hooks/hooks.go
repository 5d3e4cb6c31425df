// Package hooks holds the typed extension callback registries fired on siege
// and mini-horde events. Each callback runs isolated: an error or panic in one
// is logged and never reaches its siblings or the caller.
package hooks

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/hordenight/siege/pkg/core"
)

// SiegeStart fires on entry to ACTIVE.
type SiegeStart struct {
	SiegeIndex    int
	Direction     core.Direction
	TargetZombies int
}

// SiegeEnd fires when a siege leaves DAWN.
type SiegeEnd struct {
	SiegeIndex   int
	TotalKills   int
	TotalSpawned int
	Entry        core.HistoryEntry
}

// WaveStart fires when a wave's burst begins. WaveIndex is 1-based.
type WaveStart struct {
	WaveIndex  int
	TotalWaves int
}

// BreakStart fires when a break between waves begins.
type BreakStart struct {
	WaveIndex  int
	TotalWaves int
	BreakTicks int
}

// MiniHorde fires when a heat cell triggers an ambient horde.
type MiniHorde struct {
	Count     int
	Direction core.Direction
	CellKey   core.CellKey
	Heat      float64
}

type subscriber[T any] struct {
	name string
	fn   func(T) error
}

// Topic is an ordered list of named callbacks for one event type.
type Topic[T any] struct {
	name   string
	logger *slog.Logger

	mu   sync.RWMutex
	subs []subscriber[T]
}

func newTopic[T any](name string, logger *slog.Logger) *Topic[T] {
	return &Topic[T]{name: name, logger: logger}
}

// Subscribe registers fn under name. Callbacks fire in registration order.
func (t *Topic[T]) Subscribe(name string, fn func(T) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subs = append(t.subs, subscriber[T]{name: name, fn: fn})
}

// Len returns the number of registered callbacks.
func (t *Topic[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs)
}

// Fire invokes every callback with ev and returns how many failed.
func (t *Topic[T]) Fire(ev T) int {
	t.mu.RLock()
	subs := make([]subscriber[T], len(t.subs))
	copy(subs, t.subs)
	t.mu.RUnlock()

	failed := 0
	for _, s := range subs {
		if err := t.invoke(s, ev); err != nil {
			failed++
			t.logger.Error("Hook callback failed",
				"topic", t.name,
				"callback", s.name,
				"error", err)
		}
	}
	return failed
}

func (t *Topic[T]) invoke(s subscriber[T], ev T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.fn(ev)
}

// Registry groups the topics the director fires.
type Registry struct {
	SiegeStart *Topic[SiegeStart]
	SiegeEnd   *Topic[SiegeEnd]
	WaveStart  *Topic[WaveStart]
	BreakStart *Topic[BreakStart]
	MiniHorde  *Topic[MiniHorde]
}

// NewRegistry creates empty topics logging failures to logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		SiegeStart: newTopic[SiegeStart]("onSiegeStart", logger),
		SiegeEnd:   newTopic[SiegeEnd]("onSiegeEnd", logger),
		WaveStart:  newTopic[WaveStart]("onWaveStart", logger),
		BreakStart: newTopic[BreakStart]("onBreakStart", logger),
		MiniHorde:  newTopic[MiniHorde]("onMiniHorde", logger),
	}
}
