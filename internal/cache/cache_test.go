package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hordenight/siege/pkg/core"
)

func TestVariantCache_TagAndGet(t *testing.T) {
	c := NewVariantCache()

	c.Tag("z1", core.VariantTank)

	got, ok := c.Get("z1")
	require.True(t, ok)
	assert.Equal(t, core.VariantTank, got)
	assert.Equal(t, 1, c.Len())
}

func TestVariantCache_TakeConsumes(t *testing.T) {
	c := NewVariantCache()
	c.Tag("z1", core.VariantSprinter)

	got, ok := c.Take("z1")
	require.True(t, ok)
	assert.Equal(t, core.VariantSprinter, got)

	_, ok = c.Take("z1")
	assert.False(t, ok, "second take finds nothing")
}

func TestVariantCache_ForgetAndReset(t *testing.T) {
	c := NewVariantCache()
	c.Tag("a", core.VariantNormal)
	c.Tag("b", core.VariantBreaker)

	c.Forget("a")
	assert.Equal(t, 1, c.Len())

	c.Reset()
	assert.Equal(t, 0, c.Len())
}

func TestVariantCache_Concurrent(t *testing.T) {
	c := NewVariantCache()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i%26))
			c.Tag(id, core.VariantNormal)
			c.Get(id)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 26, c.Len())
}

func TestSafeCounter(t *testing.T) {
	var c SafeCounter
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Inc()
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, c.Value())

	c.Set(5)
	assert.Equal(t, 5, c.Value())
}
