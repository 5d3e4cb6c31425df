package spawn

import (
	"math"
	"math/rand/v2"

	"github.com/hordenight/siege/internal/geo"
	"github.com/hordenight/siege/pkg/core"
	"github.com/hordenight/siege/pkg/host"
)

const (
	primaryBearingChance = 0.65
	lateralJitter        = 20.0
	attemptsPerTier      = 30
	relaxedDistanceShare = 0.65
	scatterDistanceShare = 0.7
	minDistanceShare     = 0.5
	minDistanceFloor     = 25.0
)

// Tier identifies which fallback level produced a position.
type Tier int

const (
	TierNone Tier = iota
	TierStrict
	TierRelaxed
	TierScatter
)

// Resolver finds spawn coordinates near an anchor along a bearing.
type Resolver struct {
	world host.World
	zones *geo.ZoneSet
	rng   *rand.Rand
}

// NewResolver creates a Resolver. zones may be nil.
func NewResolver(world host.World, zones *geo.ZoneSet, rng *rand.Rand) *Resolver {
	return &Resolver{world: world, zones: zones, rng: rng}
}

// Resolve searches three tiers of decreasing strictness for a spawn point.
// The primary bearing is used 65% of the time, otherwise a random one.
// Running out of attempts returns false; callers drop the spawn.
func (r *Resolver) Resolve(anchor core.Vec2, primary core.Direction, distance float64) (core.Vec2, Tier, bool) {
	bearing := primary
	if r.rng.Float64() >= primaryBearingChance {
		bearing = core.Direction(r.rng.IntN(core.DirectionCount))
	}

	for range attemptsPerTier {
		p := r.alongBearing(anchor, bearing, distance)
		if !r.world.IsOccupied(p) && r.world.IsOutdoors(p) && !r.restricted(p) {
			return p, TierStrict, true
		}
	}

	minDist := max(minDistanceFloor, distance*minDistanceShare)
	relaxed := max(minDist, distance*relaxedDistanceShare)
	for range attemptsPerTier {
		p := r.alongBearing(anchor, bearing, relaxed)
		if !r.world.IsOccupied(p) {
			return p, TierRelaxed, true
		}
	}

	maxScatter := max(minDist, distance*scatterDistanceShare)
	for range attemptsPerTier {
		angle := r.rng.Float64() * 2 * math.Pi
		radius := minDist + r.rng.Float64()*(maxScatter-minDist)
		p := anchor.Add(core.Vec2{X: math.Sin(angle), Y: -math.Cos(angle)}.Scale(radius))
		if !r.world.IsOccupied(p) {
			return p, TierScatter, true
		}
	}

	return core.Vec2{}, TierNone, false
}

// PlaceNear is the single-tier placement used by mini-horde jobs: the fixed
// bearing at full distance, unoccupied and outdoors.
func (r *Resolver) PlaceNear(anchor core.Vec2, bearing core.Direction, distance float64) (core.Vec2, bool) {
	for range attemptsPerTier {
		p := r.alongBearing(anchor, bearing, distance)
		if !r.world.IsOccupied(p) && r.world.IsOutdoors(p) {
			return p, true
		}
	}
	return core.Vec2{}, false
}

func (r *Resolver) alongBearing(anchor core.Vec2, bearing core.Direction, distance float64) core.Vec2 {
	u := bearing.Unit()
	jitter := (r.rng.Float64()*2 - 1) * lateralJitter
	return anchor.Add(u.Scale(distance)).Add(u.Perp().Scale(jitter))
}

func (r *Resolver) restricted(p core.Vec2) bool {
	return r.world.InRestrictedZone(p) || r.zones.Contains(p)
}
