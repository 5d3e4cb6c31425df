// Package simhost is an in-memory simulation host. It backs the headless
// runner and the director's tests with a deterministic world.
package simhost

import (
	"fmt"
	"math"
	"sync"

	"github.com/hordenight/siege/pkg/core"
	"github.com/hordenight/siege/pkg/host"
)

// Actor is a simulated participant.
type Actor struct {
	w         *World
	id        string
	pos       core.Vec2
	valid     bool
	inVehicle bool
	weight    float64
}

func (a *Actor) ID() string { return a.id }

func (a *Actor) Position() core.Vec2 {
	a.w.mu.Lock()
	defer a.w.mu.Unlock()
	return a.pos
}

func (a *Actor) Valid() bool {
	a.w.mu.Lock()
	defer a.w.mu.Unlock()
	return a.valid
}

func (a *Actor) InVehicle() bool {
	a.w.mu.Lock()
	defer a.w.mu.Unlock()
	return a.inVehicle
}

func (a *Actor) CarriedWeight() float64 {
	a.w.mu.Lock()
	defer a.w.mu.Unlock()
	return a.weight
}

// MoveTo teleports the actor.
func (a *Actor) MoveTo(p core.Vec2) {
	a.w.mu.Lock()
	defer a.w.mu.Unlock()
	a.pos = p
}

// SetVehicle toggles whether the actor is driving.
func (a *Actor) SetVehicle(in bool) {
	a.w.mu.Lock()
	defer a.w.mu.Unlock()
	a.inVehicle = in
}

// SetWeight sets the carried inventory weight.
func (a *Actor) SetWeight(w float64) {
	a.w.mu.Lock()
	defer a.w.mu.Unlock()
	a.weight = w
}

// Disconnect invalidates the actor and removes it from the world.
func (a *Actor) Disconnect() {
	a.w.mu.Lock()
	defer a.w.mu.Unlock()
	a.valid = false
}

// Entity is a simulated hostile.
type Entity struct {
	w       *World
	id      string
	Pos     core.Vec2
	Outfit  string
	Health  float64
	Variant core.Variant
	// Appearance is the outfit currently shown; re-initialization clears it.
	Appearance string
	// InitStats is the global stat profile seen at the last re-initialization.
	InitStats core.StatProfile
	Target    string
	alive     bool
}

func (e *Entity) ID() string { return e.id }

func (e *Entity) Valid() bool {
	e.w.mu.Lock()
	defer e.w.mu.Unlock()
	return e.alive
}

// Delivery is one envelope handed to the host messenger.
type Delivery struct {
	Recipients []string
	Envelope   []byte
}

// Option configures a World.
type Option func(*World)

// WithOccupied overrides the occupancy test.
func WithOccupied(fn func(core.Vec2) bool) Option {
	return func(w *World) { w.occupied = fn }
}

// WithIndoors overrides which positions count as indoors.
func WithIndoors(fn func(core.Vec2) bool) Option {
	return func(w *World) { w.indoors = fn }
}

// WithRestricted overrides the host's restricted-zone test.
func WithRestricted(fn func(core.Vec2) bool) Option {
	return func(w *World) { w.restricted = fn }
}

// World is the simulated host. It implements host.World, host.StatChannel
// and host.Messenger.
type World struct {
	mu sync.Mutex

	minutes    int
	actors     []*Actor
	entities   map[string]*Entity
	order      []string
	generators map[core.Vec2]bool
	stats      core.StatProfile
	nextID     int
	refuse     bool

	occupied   func(core.Vec2) bool
	indoors    func(core.Vec2) bool
	restricted func(core.Vec2) bool

	Attracts   int
	Pursuits   int
	Reinits    int
	Deliveries []Delivery
}

var (
	_ host.World       = (*World)(nil)
	_ host.StatChannel = (*World)(nil)
	_ host.Messenger   = (*World)(nil)
)

// New creates an empty world at the given time.
func New(start core.GameTime, opts ...Option) *World {
	w := &World{
		minutes:    start.Minutes(),
		entities:   make(map[string]*Entity),
		generators: make(map[core.Vec2]bool),
		occupied:   func(core.Vec2) bool { return false },
		indoors:    func(core.Vec2) bool { return false },
		restricted: func(core.Vec2) bool { return false },
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// AddActor connects a participant at p.
func (w *World) AddActor(id string, p core.Vec2) *Actor {
	w.mu.Lock()
	defer w.mu.Unlock()
	a := &Actor{w: w, id: id, pos: p, valid: true}
	w.actors = append(w.actors, a)
	return a
}

// AddGenerator places a running power source on the square containing p.
func (w *World) AddGenerator(p core.Vec2) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.generators[square(p)] = true
}

// SetTime jumps the clock.
func (w *World) SetTime(t core.GameTime) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.minutes = t.Minutes()
}

// Advance moves the clock forward.
func (w *World) Advance(minutes int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.minutes += minutes
}

// RefuseSpawns makes Spawn fail, as an overloaded host would.
func (w *World) RefuseSpawns(refuse bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.refuse = refuse
}

// Entities returns live entities in spawn order.
func (w *World) Entities() []*Entity {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []*Entity
	for _, id := range w.order {
		if e := w.entities[id]; e.alive {
			out = append(out, e)
		}
	}
	return out
}

// Entity looks up an entity by id, dead or alive.
func (w *World) Entity(id string) (*Entity, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entities[id]
	return e, ok
}

// Kill removes an entity and returns the event the host would report.
// Unknown ids still produce an event, like an unrelated hostile dying.
func (w *World) Kill(id, killer string, melee bool) core.KillEvent {
	w.mu.Lock()
	defer w.mu.Unlock()
	ev := core.KillEvent{EntityID: id, KillerID: killer, Melee: melee, Time: core.TimeFromMinutes(w.minutes)}
	if e, ok := w.entities[id]; ok {
		e.alive = false
		ev.Position = e.Pos
	}
	return ev
}

func (w *World) Now() core.GameTime {
	w.mu.Lock()
	defer w.mu.Unlock()
	return core.TimeFromMinutes(w.minutes)
}

func (w *World) Actors() []host.Actor {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]host.Actor, 0, len(w.actors))
	for _, a := range w.actors {
		if a.valid {
			out = append(out, a)
		}
	}
	return out
}

func (w *World) IsOccupied(p core.Vec2) bool       { return w.occupied(p) }
func (w *World) IsOutdoors(p core.Vec2) bool       { return !w.indoors(p) }
func (w *World) InRestrictedZone(p core.Vec2) bool { return w.restricted(p) }

func (w *World) GeneratorAt(p core.Vec2) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.generators[square(p)]
}

func (w *World) Spawn(req host.SpawnRequest) (host.Entity, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.refuse {
		return nil, false
	}
	w.nextID++
	e := &Entity{
		w:          w,
		id:         fmt.Sprintf("z%d", w.nextID),
		Pos:        req.Position,
		Outfit:     req.Outfit,
		Appearance: req.Outfit,
		Health:     req.HealthMultiplier,
		Variant:    core.VariantNormal,
		InitStats:  w.stats,
		alive:      true,
	}
	w.entities[e.id] = e
	w.order = append(w.order, e.id)
	return e, true
}

func (w *World) MarkVariant(e host.Entity, v core.Variant) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ent, ok := w.entities[e.ID()]; ok {
		ent.Variant = v
	}
}

func (w *World) Pursue(e host.Entity, target host.Actor) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Pursuits++
	if ent, ok := w.entities[e.ID()]; ok {
		ent.Target = target.ID()
	}
}

func (w *World) Attract(core.Vec2, float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Attracts++
}

func (w *World) Stats() core.StatProfile {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *World) SetStats(p core.StatProfile) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats = p
}

func (w *World) Reinitialize(e host.Entity) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Reinits++
	if ent, ok := w.entities[e.ID()]; ok {
		ent.InitStats = w.stats
		ent.Appearance = ""
	}
}

func (w *World) ApplyAppearance(e host.Entity, outfit string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ent, ok := w.entities[e.ID()]; ok {
		ent.Appearance = outfit
	}
}

func (w *World) Deliver(recipients []string, envelope []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Deliveries = append(w.Deliveries, Delivery{Recipients: recipients, Envelope: envelope})
}

// TakeDeliveries returns and clears the recorded deliveries.
func (w *World) TakeDeliveries() []Delivery {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := w.Deliveries
	w.Deliveries = nil
	return out
}

func square(p core.Vec2) core.Vec2 {
	return core.Vec2{X: math.Floor(p.X), Y: math.Floor(p.Y)}
}
