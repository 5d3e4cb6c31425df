package spawn

import (
	"github.com/hordenight/siege/internal/queue"
	"github.com/hordenight/siege/pkg/core"
	"github.com/hordenight/siege/pkg/host"
)

// TrackedLimit caps the re-targeting list; the oldest entries fall off first.
const TrackedLimit = 200

// Tracked pairs a siege spawn with the actor it hunts.
type Tracked struct {
	Entity host.Entity
	Anchor host.Actor
}

// Tracker keeps recent siege spawns for periodic re-targeting.
type Tracker struct {
	items *queue.Queue[Tracked]
}

func NewTracker() *Tracker {
	return &Tracker{items: queue.NewBounded[Tracked](TrackedLimit)}
}

// Track adds a spawn, evicting the oldest one beyond the limit.
func (t *Tracker) Track(e host.Entity, anchor host.Actor) {
	t.items.Push(Tracked{Entity: e, Anchor: anchor})
}

func (t *Tracker) Len() int {
	return t.items.Len()
}

func (t *Tracker) Clear() {
	t.items.Clear()
}

// Retarget drops dead spawns, moves spawns whose anchor left onto the live
// actor nearest the old anchor, and re-issues pursuit. It returns how many
// spawns were re-anchored.
func (t *Tracker) Retarget(world host.World) int {
	actors := host.LiveActors(world.Actors())
	items := t.items.GetAndEmpty()
	kept := items[:0]
	reanchored := 0
	for _, it := range items {
		if it.Entity == nil || !it.Entity.Valid() {
			continue
		}
		if it.Anchor == nil || !it.Anchor.Valid() {
			var from core.Vec2
			if it.Anchor != nil {
				from = it.Anchor.Position()
			}
			next, ok := host.NearestActor(actors, from)
			if !ok {
				kept = append(kept, it)
				continue
			}
			it.Anchor = next
			reanchored++
		}
		world.Pursue(it.Entity, it.Anchor)
		kept = append(kept, it)
	}
	t.items.Push(kept...)
	return reanchored
}
