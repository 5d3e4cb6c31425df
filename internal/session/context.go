// Package session holds the identity of the world the director is running in.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// NoWorld is the world key before the host reports one.
const NoWorld = "No world loaded"

// Context holds the current world key and session identity.
type Context struct {
	mu      sync.RWMutex
	world   string
	id      uuid.UUID
	started time.Time
}

// NewContext creates a new Context with default values
func NewContext() *Context {
	return &Context{
		world:   NoWorld,
		id:      uuid.New(),
		started: time.Now(),
	}
}

// World returns the persistent world key.
func (c *Context) World() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.world
}

// SetWorld sets the world key and starts a new session id.
func (c *Context) SetWorld(world string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.world = world
	c.id = uuid.New()
	c.started = time.Now()
}

// Loaded reports whether a world key has been set.
func (c *Context) Loaded() bool {
	return c.World() != NoWorld
}

// ID returns the session id.
func (c *Context) ID() uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

// Started returns when the current session began.
func (c *Context) Started() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.started
}

// Attrs returns the log attributes identifying this session.
func (c *Context) Attrs() []slog.Attr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return []slog.Attr{
		slog.String("world", c.world),
		slog.String("session", c.id.String()),
	}
}
