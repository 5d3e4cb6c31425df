// Package spawn turns a siege's wave plan into spawned hostiles: position
// resolution, variant rolls, the deferred stat queue, re-targeting and the
// per-tick phase engine.
package spawn

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/hordenight/siege/internal/cache"
	"github.com/hordenight/siege/internal/config"
	"github.com/hordenight/siege/internal/hooks"
	"github.com/hordenight/siege/internal/notify"
	"github.com/hordenight/siege/internal/util"
	"github.com/hordenight/siege/internal/wave"
	"github.com/hordenight/siege/pkg/core"
	"github.com/hordenight/siege/pkg/host"
	"github.com/hordenight/siege/pkg/streaming"
)

const instrumentationName = "github.com/hordenight/siege/internal/spawn"

// Run is the transient per-siege spawn context. It is rebuilt from the
// persisted record when missing, e.g. after a restart mid-siege.
type Run struct {
	Plan         []wave.Definition
	PhaseSpawned int
	Countdown    int
	Announced    bool
	Planned      bool
}

// Deps are the collaborators an Engine needs.
type Deps struct {
	World    host.World
	Config   *config.Provider
	Resolver *Resolver
	Variants *cache.VariantCache
	Notifier notify.Notifier
	Hooks    *hooks.Registry
	Rng      *rand.Rand
	Logger   *slog.Logger
}

// Engine executes the WAVE, TRICKLE, BREAK and COMPLETE phases while a siege
// is ACTIVE.
type Engine struct {
	world    host.World
	cfg      *config.Provider
	resolver *Resolver
	roller   *Roller
	stats    *StatQueue
	tracker  *Tracker
	variants *cache.VariantCache
	notifier notify.Notifier
	hooks    *hooks.Registry
	rng      *rand.Rand
	logger   *slog.Logger

	spawned metric.Int64Counter
	dropped metric.Int64Counter
}

// NewEngine wires an Engine. Metrics use the global OTel meter.
func NewEngine(d Deps) (*Engine, error) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		world:    d.World,
		cfg:      d.Config,
		resolver: d.Resolver,
		roller:   NewRoller(d.Rng),
		stats:    NewStatQueue(logger),
		tracker:  NewTracker(),
		variants: d.Variants,
		notifier: d.Notifier,
		hooks:    d.Hooks,
		rng:      d.Rng,
		logger:   logger,
	}

	m := otel.Meter(instrumentationName)
	var err error
	e.spawned, err = m.Int64Counter(
		"siege.spawns",
		metric.WithDescription("Total siege hostiles spawned"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating spawns counter: %w", err)
	}
	e.dropped, err = m.Int64Counter(
		"siege.spawns.dropped",
		metric.WithDescription("Siege spawns dropped for lack of a valid position"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}
	return e, nil
}

// Stats returns the deferred stat queue.
func (e *Engine) Stats() *StatQueue { return e.stats }

// Tracker returns the re-targeting list.
func (e *Engine) Tracker() *Tracker { return e.tracker }

// Begin plans a fresh siege and opens the first wave.
func (e *Engine) Begin(rec *core.SiegeRecord, run *Run) {
	*run = Run{Plan: wave.Plan(rec.TargetZombies), Planned: true}
	if len(run.Plan) == 0 {
		rec.CurrentPhase = core.PhaseComplete
		return
	}
	e.startWave(rec, run, 0)
}

// Resume rebuilds a lost plan from the record without replaying
// announcements. A break in progress restarts from its full length; a burst
// or trickle in progress continues from the units it already spawned.
func (e *Engine) Resume(rec *core.SiegeRecord, run *Run) {
	*run = Run{Plan: wave.Plan(rec.TargetZombies), Countdown: 1, Planned: true}
	if rec.CurrentWaveIndex >= len(run.Plan) {
		rec.CurrentPhase = core.PhaseComplete
	}
	if rec.CurrentPhase == core.PhaseBreak {
		run.Countdown = run.Plan[rec.CurrentWaveIndex].BreakTicks
	}
	run.PhaseSpawned = phaseProgress(rec, run.Plan)
	run.Announced = rec.CurrentPhase == core.PhaseComplete
	e.logger.Info("Rebuilt wave plan",
		"waves", len(run.Plan),
		"wave", rec.CurrentWaveIndex+1,
		"phase", rec.CurrentPhase,
		"spawned", rec.SpawnedThisSiege,
		"target", rec.TargetZombies)
}

// phaseProgress derives how much of the current burst or trickle already
// spawned from the persisted total, so a resumed phase only spawns the rest.
func phaseProgress(rec *core.SiegeRecord, plan []wave.Definition) int {
	if rec.CurrentWaveIndex >= len(plan) {
		return 0
	}
	def := plan[rec.CurrentWaveIndex]
	done := rec.SpawnedThisSiege - wave.Total(plan[:rec.CurrentWaveIndex])
	switch rec.CurrentPhase {
	case core.PhaseWave:
		return util.Clamp(done, 0, def.WaveSize)
	case core.PhaseTrickle:
		return util.Clamp(done-def.WaveSize, 0, def.TrickleSize)
	default:
		return 0
	}
}

// End drops transient siege state.
func (e *Engine) End(run *Run) {
	*run = Run{}
	e.tracker.Clear()
}

// Step advances the engine by one tick.
func (e *Engine) Step(rec *core.SiegeRecord, run *Run, now core.GameTime) {
	if !run.Planned {
		e.Resume(rec, run)
	}
	s := LoadSettings(e.cfg)

	switch rec.CurrentPhase {
	case core.PhaseComplete:
		return
	case core.PhaseBreak:
		run.Countdown--
		if run.Countdown <= 0 {
			e.startWave(rec, run, rec.CurrentWaveIndex+1)
		}
		return
	}

	run.Countdown--
	if run.Countdown > 0 {
		return
	}

	def := run.Plan[rec.CurrentWaveIndex]
	batch, phaseTarget := s.WaveBatchSize, def.WaveSize
	run.Countdown = s.WaveIntervalTicks
	if rec.CurrentPhase == core.PhaseTrickle {
		batch, phaseTarget = 1, def.TrickleSize
		run.Countdown = s.TrickleIntervalTicks
	}

	limit := min(phaseTarget-run.PhaseSpawned, rec.TargetZombies-rec.SpawnedThisSiege)
	if limit > 0 {
		n := e.spawnBatch(rec, batch, limit, s, now)
		run.PhaseSpawned += n
		rec.SpawnedThisSiege += n
	}
	e.advance(rec, run, s)

	if !run.Announced && rec.TargetZombies > 0 && rec.SpawnedThisSiege >= rec.TargetZombies {
		run.Announced = true
		rec.CurrentPhase = core.PhaseComplete
		e.notifier.Broadcast(streaming.TypeHordeComplete, streaming.HordeCompletePayload{
			TargetZombies: rec.TargetZombies,
			KillsSoFar:    rec.TotalKills(),
		})
		e.logger.Info("Horde fully spawned", "target", rec.TargetZombies, "kills", rec.TotalKills())
	}
}

func (e *Engine) advance(rec *core.SiegeRecord, run *Run, s Settings) {
	def := run.Plan[rec.CurrentWaveIndex]
	if rec.CurrentPhase == core.PhaseWave && run.PhaseSpawned >= def.WaveSize {
		rec.CurrentPhase = core.PhaseTrickle
		run.PhaseSpawned = 0
		run.Countdown = s.TrickleIntervalTicks
	}
	if rec.CurrentPhase != core.PhaseTrickle || run.PhaseSpawned < def.TrickleSize {
		return
	}

	if rec.CurrentWaveIndex == len(run.Plan)-1 {
		rec.CurrentPhase = core.PhaseComplete
		return
	}

	rec.CurrentPhase = core.PhaseBreak
	run.PhaseSpawned = 0
	run.Countdown = def.BreakTicks

	tickRate := max(1, e.cfg.Int("tick.rate"))
	e.notifier.Broadcast(streaming.TypeWaveBreak, streaming.WaveBreakPayload{
		WaveIndex:    rec.CurrentWaveIndex + 1,
		TotalWaves:   len(run.Plan),
		BreakSeconds: def.BreakTicks / tickRate,
	})
	e.hooks.BreakStart.Fire(hooks.BreakStart{
		WaveIndex:  rec.CurrentWaveIndex + 1,
		TotalWaves: len(run.Plan),
		BreakTicks: def.BreakTicks,
	})
}

func (e *Engine) startWave(rec *core.SiegeRecord, run *Run, i int) {
	rec.CurrentWaveIndex = i
	rec.CurrentPhase = core.PhaseWave
	run.PhaseSpawned = 0
	run.Countdown = 1

	e.logger.Info("Wave starting", "wave", i+1, "waves", len(run.Plan), "size", run.Plan[i].Size())
	e.notifier.Broadcast(streaming.TypeWaveStart, streaming.WaveStartPayload{
		WaveIndex:  i + 1,
		TotalWaves: len(run.Plan),
	})
	e.hooks.WaveStart.Fire(hooks.WaveStart{WaveIndex: i + 1, TotalWaves: len(run.Plan)})
}

type quota struct {
	anchor host.Actor
	count  int
}

// spawnBatch makes one attempt per unit of this tick's batch and returns how
// many spawned. A group that can all see each other is served from the actor
// nearest its centroid; scattered actors each get an even share.
func (e *Engine) spawnBatch(rec *core.SiegeRecord, batch, limit int, s Settings, now core.GameTime) int {
	actors := host.LiveActors(e.world.Actors())
	if len(actors) == 0 {
		return 0
	}

	var quotas []quota
	if mutuallyVisible(actors, s.VisibilityRadius) {
		anchor, _ := host.NearestActor(actors, host.Centroid(actors))
		quotas = []quota{{anchor: anchor, count: batch}}
	} else {
		per := max(1, batch/len(actors))
		for _, a := range actors {
			quotas = append(quotas, quota{anchor: a, count: per})
		}
	}

	spawned := 0
	for _, q := range quotas {
		for range q.count {
			if spawned >= limit {
				return spawned
			}
			if e.spawnOne(rec, q.anchor, s, now) {
				spawned++
			}
		}
	}
	return spawned
}

func (e *Engine) spawnOne(rec *core.SiegeRecord, anchor host.Actor, s Settings, now core.GameTime) bool {
	ctx := context.Background()

	pos, tier, ok := e.resolver.Resolve(anchor.Position(), rec.LastDirection, s.SpawnDistance)
	if !ok {
		e.logger.Debug("Dropped siege spawn, no valid position", "anchor", anchor.ID())
		e.dropped.Add(ctx, 1)
		return false
	}

	variant := e.roller.Roll(s.Specials, rollState(rec, s, now))
	outfit := e.pickOutfit(s.Outfits)
	health := s.HealthMultiplier
	if variant == core.VariantTank {
		health = s.TankHealthMultiplier
	}

	ent, ok := e.world.Spawn(host.SpawnRequest{Position: pos, Outfit: outfit, HealthMultiplier: health})
	if !ok {
		e.logger.Debug("Dropped siege spawn, host refused", "anchor", anchor.ID(), "tier", tier)
		e.dropped.Add(ctx, 1)
		return false
	}

	e.variants.Tag(ent.ID(), variant)
	if variant.Special() {
		e.world.MarkVariant(ent, variant)
		e.stats.Enqueue(StatJob{Entity: ent, Variant: variant, Outfit: outfit})
		if variant == core.VariantTank {
			rec.TanksSpawned++
		}
	}

	e.world.Pursue(ent, anchor)
	e.world.Attract(anchor.Position(), s.AttractRadius)
	e.tracker.Track(ent, anchor)
	e.spawned.Add(ctx, 1, metric.WithAttributes(attribute.String("variant", string(variant))))
	return true
}

func (e *Engine) pickOutfit(outfits []string) string {
	if len(outfits) == 0 {
		return ""
	}
	return outfits[e.rng.IntN(len(outfits))]
}

func rollState(rec *core.SiegeRecord, s Settings, now core.GameTime) RollState {
	st := RollState{
		SiegeCount:   rec.SiegeCount,
		NightLength:  util.WindowLength(s.DuskHour, s.DawnHour),
		TanksSpawned: rec.TanksSpawned,
	}
	if h := now.HourF(); util.InHourWindow(h, s.DuskHour, s.DawnHour) {
		st.HoursSinceDusk = util.HoursSince(h, s.DuskHour)
	}
	return st
}

func mutuallyVisible(actors []host.Actor, radius float64) bool {
	for i := range actors {
		for j := i + 1; j < len(actors); j++ {
			if actors[i].Position().Dist(actors[j].Position()) > radius {
				return false
			}
		}
	}
	return true
}
