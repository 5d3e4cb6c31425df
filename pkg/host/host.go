// Package host defines the capabilities the simulation host provides to the
// siege director. The director never reaches into the engine directly; every
// spatial, spawning and stat operation goes through these interfaces.
package host

import "github.com/hordenight/siege/pkg/core"

// Actor is a connected participant.
type Actor interface {
	ID() string
	Position() core.Vec2
	// Valid is false once the actor disconnects or dies.
	Valid() bool
	InVehicle() bool
	CarriedWeight() float64
}

// Entity is a spawned hostile.
type Entity interface {
	ID() string
	Valid() bool
}

// SpawnRequest describes one hostile to create.
type SpawnRequest struct {
	Position         core.Vec2
	Outfit           string
	HealthMultiplier float64
}

// World exposes the engine's spatial, spawning and pathing primitives.
type World interface {
	Now() core.GameTime
	// Actors returns the live, connected participants.
	Actors() []Actor

	IsOccupied(p core.Vec2) bool
	IsOutdoors(p core.Vec2) bool
	InRestrictedZone(p core.Vec2) bool
	// GeneratorAt reports a running power source on the square containing p.
	GeneratorAt(p core.Vec2) bool

	Spawn(req SpawnRequest) (Entity, bool)
	// MarkVariant applies the visual tag for a rolled variant.
	MarkVariant(e Entity, v core.Variant)
	// Pursue primes full aggression of e towards target: path, target and aggro.
	Pursue(e Entity, target Actor)
	// Attract emits a localized attraction cue.
	Attract(p core.Vec2, radius float64)
}

// StatChannel is the host-owned global behaviour stat side channel.
// Values are shared by every entity; changing them for one entity means
// swapping the global, re-initializing the entity and restoring.
type StatChannel interface {
	Stats() core.StatProfile
	SetStats(p core.StatProfile)
	Reinitialize(e Entity)
	ApplyAppearance(e Entity, outfit string)
}

// Messenger delivers an encoded notification envelope to connected
// participants. Empty recipients means everyone.
type Messenger interface {
	Deliver(recipients []string, envelope []byte)
}

// LiveActors filters out disconnected or dead actors.
func LiveActors(all []Actor) []Actor {
	out := make([]Actor, 0, len(all))
	for _, a := range all {
		if a != nil && a.Valid() {
			out = append(out, a)
		}
	}
	return out
}

// NearestActor returns the actor closest to p.
func NearestActor(actors []Actor, p core.Vec2) (Actor, bool) {
	var best Actor
	bestDist := 0.0
	for _, a := range actors {
		d := a.Position().Dist(p)
		if best == nil || d < bestDist {
			best, bestDist = a, d
		}
	}
	return best, best != nil
}

// Centroid returns the mean position of actors.
func Centroid(actors []Actor) core.Vec2 {
	var c core.Vec2
	if len(actors) == 0 {
		return c
	}
	for _, a := range actors {
		c = c.Add(a.Position())
	}
	return c.Scale(1 / float64(len(actors)))
}

// GeneratorNear searches the squares within radius of p for a running power
// source.
func GeneratorNear(w World, p core.Vec2, radius int) bool {
	for dx := -radius; dx <= radius; dx++ {
		for dy := -radius; dy <= radius; dy++ {
			if w.GeneratorAt(core.Vec2{X: p.X + float64(dx), Y: p.Y + float64(dy)}) {
				return true
			}
		}
	}
	return false
}
