// Package heat tracks decaying player activity on a coarse grid and turns hot
// cells into small ambient hordes between sieges.
package heat

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/hordenight/siege/internal/config"
	"github.com/hordenight/siege/internal/hooks"
	"github.com/hordenight/siege/internal/notify"
	"github.com/hordenight/siege/internal/spawn"
	"github.com/hordenight/siege/pkg/core"
	"github.com/hordenight/siege/pkg/host"
	"github.com/hordenight/siege/pkg/streaming"
)

const instrumentationName = "github.com/hordenight/siege/internal/heat"

// Settings are the heat tunables.
type Settings struct {
	Enabled              bool
	Threshold            float64
	CooldownMinutes      int
	MinZombies           int
	MaxZombies           int
	ScaleWithActivity    bool
	ScaleWithPlayers     bool
	WeightThreshold      float64
	SearchRadius         int
	SpawnIntervalTicks   int
	SpawnDistance        float64
	MaxPlacementFailures int
	HealthMultiplier     float64
	VisibilityRadius     float64
	Outfits              []string
}

// LoadSettings reads the heat settings from p.
func LoadSettings(p *config.Provider) Settings {
	return Settings{
		Enabled:              p.Bool("heat.enabled"),
		Threshold:            p.Float("heat.threshold"),
		CooldownMinutes:      p.Int("heat.cooldownMinutes"),
		MinZombies:           p.Int("heat.minZombies"),
		MaxZombies:           p.Int("heat.maxZombies"),
		ScaleWithActivity:    p.Bool("heat.scaleWithActivity"),
		ScaleWithPlayers:     p.Bool("heat.scaleWithPlayers"),
		WeightThreshold:      p.Float("heat.weightThreshold"),
		SearchRadius:         p.Int("heat.searchRadius"),
		SpawnIntervalTicks:   max(1, p.Int("heat.spawnIntervalTicks")),
		SpawnDistance:        p.Float("heat.spawnDistance"),
		MaxPlacementFailures: max(1, p.Int("heat.maxPlacementFailures")),
		HealthMultiplier:     p.Float("siege.healthMultiplier"),
		VisibilityRadius:     p.Float("siege.visibilityRadius"),
		Outfits:              p.Strings("siege.outfits"),
	}
}

// HordeSize returns the mini-horde size for a cell at heat with actorCount
// connected participants.
func HordeSize(s Settings, heat float64, actorCount int) int {
	size := float64(s.MinZombies)
	if s.ScaleWithActivity {
		size += float64(s.MaxZombies-s.MinZombies) * min(1, heat/MaxHeat)
	}
	if s.ScaleWithPlayers {
		size *= max(1, float64(actorCount)*0.75)
	}
	return int(math.Floor(size))
}

// Job is one running mini-horde.
type Job struct {
	ID        uuid.UUID
	Cell      core.CellKey
	Anchor    host.Actor
	Total     int
	Remaining int
	Countdown int
	Interval  int
	Direction core.Direction
	Announced bool
	Failures  int
}

// Deps are the collaborators a Manager needs.
type Deps struct {
	World    host.World
	Config   *config.Provider
	Resolver *spawn.Resolver
	Notifier notify.Notifier
	Hooks    *hooks.Registry
	Rng      *rand.Rand
	Logger   *slog.Logger
}

// Manager owns the heat grid and the mini-horde jobs.
type Manager struct {
	grid     *Grid
	jobs     []*Job
	world    host.World
	cfg      *config.Provider
	resolver *spawn.Resolver
	notifier notify.Notifier
	hooks    *hooks.Registry
	rng      *rand.Rand
	logger   *slog.Logger

	triggered metric.Int64Counter
}

// NewManager wires a Manager. Metrics use the global OTel meter.
func NewManager(d Deps) (*Manager, error) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		grid:     NewGrid(),
		world:    d.World,
		cfg:      d.Config,
		resolver: d.Resolver,
		notifier: d.Notifier,
		hooks:    d.Hooks,
		rng:      d.Rng,
		logger:   logger,
	}
	var err error
	m.triggered, err = otel.Meter(instrumentationName).Int64Counter(
		"heat.minihordes",
		metric.WithDescription("Total mini-hordes triggered"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating minihordes counter: %w", err)
	}
	return m, nil
}

// Grid exposes the heat grid.
func (m *Manager) Grid() *Grid { return m.grid }

// Jobs returns the running jobs.
func (m *Manager) Jobs() []*Job { return m.jobs }

// OnWeaponFired deposits ranged-fire heat at the shooter's position.
func (m *Manager) OnWeaponFired(p core.Vec2, ranged bool) {
	if !ranged || !m.cfg.Bool("heat.enabled") {
		return
	}
	m.grid.Deposit(p, RangedShotHeat)
}

// OnMeleeKill deposits kill heat where the hostile died.
func (m *Manager) OnMeleeKill(p core.Vec2) {
	if !m.cfg.Bool("heat.enabled") {
		return
	}
	m.grid.DepositMeleeKill(p)
}

// Cycle runs the ten-minute update. Presence deposits and triggers are
// suspended while sieging; decay always runs.
func (m *Manager) Cycle(now core.GameTime, sieging bool) []*Job {
	s := LoadSettings(m.cfg)
	if !s.Enabled {
		return nil
	}
	minute := now.Minutes()
	actors := host.LiveActors(m.world.Actors())

	var started []*Job
	if !sieging {
		for _, a := range actors {
			m.grid.Deposit(a.Position(), m.presenceHeat(a, s))
		}
		started = m.trigger(minute, actors, s)
	}
	m.grid.Decay(minute, s.CooldownMinutes)
	return started
}

func (m *Manager) presenceHeat(a host.Actor, s Settings) float64 {
	h := PresenceHeat
	if a.InVehicle() {
		h += VehicleHeat
	}
	if host.GeneratorNear(m.world, a.Position(), s.SearchRadius) {
		h += GeneratorHeat
	}
	if a.CarriedWeight() > s.WeightThreshold {
		h += HeavyLoadHeat
	}
	return h
}

func (m *Manager) trigger(minute int, actors []host.Actor, s Settings) []*Job {
	if len(actors) == 0 {
		return nil
	}
	var started []*Job
	for _, k := range m.grid.Ready(minute, s.Threshold, s.CooldownMinutes) {
		c, _ := m.grid.Cell(k)
		anchor, _ := host.NearestActor(actors, k.Center())
		size := HordeSize(s, c.Heat, len(actors))
		m.grid.MarkTriggered(k, minute)
		if size <= 0 {
			continue
		}

		job := &Job{
			ID:        uuid.New(),
			Cell:      k,
			Anchor:    anchor,
			Total:     size,
			Remaining: size,
			Countdown: s.SpawnIntervalTicks,
			Interval:  s.SpawnIntervalTicks,
			Direction: core.Direction(m.rng.IntN(core.DirectionCount)),
		}
		m.jobs = append(m.jobs, job)
		started = append(started, job)

		m.triggered.Add(context.Background(), 1)
		m.logger.Info("Mini-horde triggered",
			"job", job.ID,
			"cell", k.String(),
			"heat", c.Heat,
			"size", size,
			"anchor", anchor.ID(),
			"direction", job.Direction.String())
		m.hooks.MiniHorde.Fire(hooks.MiniHorde{
			Count:     size,
			Direction: job.Direction,
			CellKey:   k,
			Heat:      c.Heat,
		})
	}
	return started
}

// Tick advances every running job by one tick. Jobs pause while sieging.
func (m *Manager) Tick(sieging bool) {
	if sieging || len(m.jobs) == 0 {
		return
	}
	s := LoadSettings(m.cfg)

	kept := m.jobs[:0]
	for _, j := range m.jobs {
		if m.advance(j, s) {
			kept = append(kept, j)
		}
	}
	clear(m.jobs[len(kept):])
	m.jobs = kept
}

// advance steps one job and reports whether it should keep running.
func (m *Manager) advance(j *Job, s Settings) bool {
	if j.Anchor == nil || !j.Anchor.Valid() {
		m.logger.Debug("Mini-horde abandoned, anchor gone", "job", j.ID, "remaining", j.Remaining)
		return false
	}
	j.Countdown--
	if j.Countdown > 0 {
		return true
	}
	j.Countdown = j.Interval

	anchorPos := j.Anchor.Position()
	pos, ok := m.resolver.PlaceNear(anchorPos, j.Direction, s.SpawnDistance)
	var ent host.Entity
	if ok {
		ent, ok = m.world.Spawn(host.SpawnRequest{
			Position:         pos,
			Outfit:           m.pickOutfit(s.Outfits),
			HealthMultiplier: s.HealthMultiplier,
		})
	}
	if !ok {
		j.Failures++
		m.logger.Debug("Mini-horde placement failed", "job", j.ID, "failures", j.Failures)
		if j.Failures >= s.MaxPlacementFailures {
			m.logger.Debug("Mini-horde abandoned, no room", "job", j.ID, "remaining", j.Remaining)
			return false
		}
		return true
	}

	j.Failures = 0
	j.Remaining--
	m.world.Pursue(ent, j.Anchor)

	if !j.Announced {
		j.Announced = true
		m.notifier.SendTo(m.nearby(anchorPos, s.VisibilityRadius), streaming.TypeMiniHorde, streaming.MiniHordePayload{
			Count:     j.Total,
			Direction: j.Direction.String(),
		})
	}
	return j.Remaining > 0
}

// nearby lists the participants close enough to notice the horde.
func (m *Manager) nearby(p core.Vec2, radius float64) []string {
	var ids []string
	for _, a := range host.LiveActors(m.world.Actors()) {
		if a.Position().Dist(p) <= radius {
			ids = append(ids, a.ID())
		}
	}
	return ids
}

func (m *Manager) pickOutfit(outfits []string) string {
	if len(outfits) == 0 {
		return ""
	}
	return outfits[m.rng.IntN(len(outfits))]
}
