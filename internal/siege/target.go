package siege

import (
	"math"

	"github.com/hordenight/siege/internal/util"
	"github.com/hordenight/siege/pkg/host"
)

const (
	generatorScore   = 30.0
	weightScore      = 20.0
	maxEstablishment = 50.0
)

// targetCount sizes the siege about to start:
// base · scaling^(siege-1) · players · establishment, capped at maxZombies.
func (d *Director) targetCount() int {
	actors := host.LiveActors(d.world.Actors())
	players := max(1, len(actors))

	base := d.cfg.Float("siege.baseZombies")
	scaling := d.cfg.Float("siege.scaling")
	index := max(0, d.rec.SiegeCount-1)

	raw := base * math.Pow(scaling, float64(index)) * float64(players) * d.establishmentMultiplier(actors)
	return min(d.cfg.Int("siege.maxZombies"), int(math.Floor(raw)))
}

// establishmentMultiplier maps how dug-in the players are to [1, 2].
func (d *Director) establishmentMultiplier(actors []host.Actor) float64 {
	return 1 + EstablishmentScore(d.world, actors,
		d.cfg.Int("establishment.searchRadius"),
		d.cfg.Float("establishment.weightForFullScore"))/maxEstablishment
}

// EstablishmentScore sums, per player, 30 for a running power source within
// radius squares and up to 20 for carried weight, clamped to [0, 50].
func EstablishmentScore(w host.World, actors []host.Actor, radius int, fullWeight float64) float64 {
	score := 0.0
	for _, a := range actors {
		if host.GeneratorNear(w, a.Position(), radius) {
			score += generatorScore
		}
		if fullWeight > 0 {
			score += weightScore * util.Clamp(a.CarriedWeight()/fullWeight, 0, 1)
		}
	}
	return util.Clamp(score, 0, maxEstablishment)
}
