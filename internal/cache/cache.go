package cache

import (
	"sync"

	"github.com/hordenight/siege/pkg/core"
)

// VariantCache remembers which variant each spawned hostile was rolled as, so
// kills can be attributed without asking the host.
type VariantCache struct {
	m        sync.Mutex
	variants map[string]core.Variant
}

func NewVariantCache() *VariantCache {
	return &VariantCache{
		variants: make(map[string]core.Variant),
	}
}

func (c *VariantCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.variants = make(map[string]core.Variant)
}

// Tag records the variant for an entity id.
func (c *VariantCache) Tag(id string, v core.Variant) {
	c.m.Lock()
	defer c.m.Unlock()
	c.variants[id] = v
}

// Get returns the variant for id without removing it.
func (c *VariantCache) Get(id string) (core.Variant, bool) {
	c.m.Lock()
	defer c.m.Unlock()
	v, ok := c.variants[id]
	return v, ok
}

// Take returns and forgets the variant for id. A kill consumes the tag.
func (c *VariantCache) Take(id string) (core.Variant, bool) {
	c.m.Lock()
	defer c.m.Unlock()
	v, ok := c.variants[id]
	if ok {
		delete(c.variants, id)
	}
	return v, ok
}

// Forget drops the tag for id.
func (c *VariantCache) Forget(id string) {
	c.m.Lock()
	defer c.m.Unlock()
	delete(c.variants, id)
}

func (c *VariantCache) Len() int {
	c.m.Lock()
	defer c.m.Unlock()
	return len(c.variants)
}

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Set(v int) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

func (c *SafeCounter) Inc() {
	c.mu.Lock()
	c.v++
	c.mu.Unlock()
}
