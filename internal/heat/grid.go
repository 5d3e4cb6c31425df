package heat

import (
	"slices"

	"github.com/hordenight/siege/pkg/core"
)

const (
	MaxHeat           = 100.0
	RangedShotHeat    = 10.0
	MeleeKillHeat     = 3.0
	MeleeKillCycleCap = 20.0
	PresenceHeat      = 3.0
	VehicleHeat       = 8.0
	GeneratorHeat     = 15.0
	HeavyLoadHeat     = 5.0
	DecayPerCycle     = 4.0
	CycleMinutes      = 10
)

// Cell is one 100-unit bucket of accumulated activity.
type Cell struct {
	Heat float64
	// LastTrigger is the game minute of the cell's last trigger, or -1.
	LastTrigger int
	// RecentKills is the melee-kill heat deposited this cycle.
	RecentKills float64
}

// Grid is the lazily populated heat map. Trigger times live in a separate
// cooldown table so a cell collected at zero heat cannot re-trigger early.
type Grid struct {
	cells     map[core.CellKey]*Cell
	cooldowns map[core.CellKey]int
}

func NewGrid() *Grid {
	return &Grid{
		cells:     make(map[core.CellKey]*Cell),
		cooldowns: make(map[core.CellKey]int),
	}
}

func (g *Grid) cell(k core.CellKey) *Cell {
	c, ok := g.cells[k]
	if !ok {
		c = &Cell{LastTrigger: -1}
		if t, ok := g.cooldowns[k]; ok {
			c.LastTrigger = t
		}
		g.cells[k] = c
	}
	return c
}

// Deposit adds heat to the cell containing p, capped at MaxHeat.
func (g *Grid) Deposit(p core.Vec2, amount float64) {
	c := g.cell(core.CellOf(p))
	c.Heat = min(MaxHeat, c.Heat+amount)
}

// DepositMeleeKill adds kill heat, at most MeleeKillCycleCap per cell per cycle.
func (g *Grid) DepositMeleeKill(p core.Vec2) {
	c := g.cell(core.CellOf(p))
	add := min(MeleeKillHeat, MeleeKillCycleCap-c.RecentKills)
	if add <= 0 {
		return
	}
	c.RecentKills += add
	c.Heat = min(MaxHeat, c.Heat+add)
}

// Heat returns the heat of the cell containing p.
func (g *Grid) Heat(p core.Vec2) float64 {
	if c, ok := g.cells[core.CellOf(p)]; ok {
		return c.Heat
	}
	return 0
}

// Cell returns a copy of the cell at k.
func (g *Grid) Cell(k core.CellKey) (Cell, bool) {
	c, ok := g.cells[k]
	if !ok {
		return Cell{}, false
	}
	return *c, true
}

// Len returns the number of materialized cells.
func (g *Grid) Len() int {
	return len(g.cells)
}

// Ready returns the cells at or above threshold whose cooldown has elapsed,
// sorted for deterministic iteration.
func (g *Grid) Ready(now int, threshold float64, cooldownMinutes int) []core.CellKey {
	var out []core.CellKey
	for k, c := range g.cells {
		if c.Heat < threshold {
			continue
		}
		if t, ok := g.cooldowns[k]; ok && now-t < cooldownMinutes {
			continue
		}
		out = append(out, k)
	}
	slices.SortFunc(out, func(a, b core.CellKey) int {
		if a.X != b.X {
			return a.X - b.X
		}
		return a.Y - b.Y
	})
	return out
}

// MarkTriggered clears the cell and starts its cooldown.
func (g *Grid) MarkTriggered(k core.CellKey, now int) {
	c := g.cell(k)
	c.Heat = 0
	c.LastTrigger = now
	g.cooldowns[k] = now
}

// Decay cools every cell, resets per-cycle kill caps and collects cells that
// are cold and at least one cycle past their last trigger. Expired cooldowns
// are pruned.
func (g *Grid) Decay(now int, cooldownMinutes int) {
	for k, c := range g.cells {
		c.Heat = max(0, c.Heat-DecayPerCycle)
		c.RecentKills = 0
		if c.Heat == 0 && (c.LastTrigger < 0 || now-c.LastTrigger >= CycleMinutes) {
			delete(g.cells, k)
		}
	}
	for k, t := range g.cooldowns {
		if now-t >= cooldownMinutes {
			delete(g.cooldowns, k)
		}
	}
}

// Hottest returns the hottest cell, if any.
func (g *Grid) Hottest() (core.CellKey, float64, bool) {
	var best core.CellKey
	bestHeat := -1.0
	for k, c := range g.cells {
		if c.Heat > bestHeat {
			best, bestHeat = k, c.Heat
		}
	}
	return best, bestHeat, bestHeat >= 0
}
