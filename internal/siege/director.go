// Package siege is the top-level orchestrator. The Director owns the
// persisted SiegeRecord and drives the state machine, the spawn engine, the
// heat grid and the vote coordinator from the host's tick callbacks.
package siege

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"github.com/hordenight/siege/internal/cache"
	"github.com/hordenight/siege/internal/config"
	"github.com/hordenight/siege/internal/geo"
	"github.com/hordenight/siege/internal/heat"
	"github.com/hordenight/siege/internal/hooks"
	"github.com/hordenight/siege/internal/notify"
	"github.com/hordenight/siege/internal/session"
	"github.com/hordenight/siege/internal/spawn"
	"github.com/hordenight/siege/internal/storage"
	"github.com/hordenight/siege/internal/vote"
	"github.com/hordenight/siege/pkg/core"
	"github.com/hordenight/siege/pkg/host"
)

var (
	// ErrSiegeActive rejects a start while a siege is running or winding down.
	ErrSiegeActive = errors.New("siege already active")
	// ErrNoSiege rejects a stop when nothing is running.
	ErrNoSiege = errors.New("no siege in progress")
	// ErrNotReady is returned by commands before the siege record is loaded.
	ErrNotReady = errors.New("siege record not loaded")
	// ErrVoteDisabled is returned when voting is switched off.
	ErrVoteDisabled = errors.New("voting disabled")
)

// Deps are the collaborators a Director needs.
type Deps struct {
	World    host.World
	Stats    host.StatChannel
	Config   *config.Provider
	Store    storage.Backend
	Session  *session.Context
	Notifier notify.Notifier
	Hooks    *hooks.Registry
	Rng      *rand.Rand
	Logger   *slog.Logger
}

// Director is the siege state machine. Every exported method is safe to call
// from any goroutine; the host's tick callbacks and chat commands are
// serialized on one mutex.
type Director struct {
	mu sync.Mutex

	world    host.World
	stats    host.StatChannel
	cfg      *config.Provider
	store    storage.Backend
	session  *session.Context
	notifier notify.Notifier
	hooks    *hooks.Registry
	rng      *rand.Rand
	logger   *slog.Logger

	variants *cache.VariantCache
	engine   *spawn.Engine
	heat     *heat.Manager
	votes    *vote.Coordinator

	rec     *core.SiegeRecord
	run     spawn.Run
	loadErr error

	ticks         int
	dawnCountdown int
	sawNight      bool
	siegeDay      int
	dirty         bool

	status atomic.Pointer[Status]
}

// New wires a Director. Restricted zones are parsed from siege.restrictedZones.
func New(d Deps) (*Director, error) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if d.Session == nil {
		d.Session = session.NewContext()
	}
	if d.Hooks == nil {
		d.Hooks = hooks.NewRegistry(logger)
	}
	if d.Rng == nil {
		d.Rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	zones, err := geo.ParseZones(d.Config.Strings("siege.restrictedZones"))
	if err != nil {
		return nil, fmt.Errorf("invalid siege.restrictedZones: %w", err)
	}

	dir := &Director{
		world:    d.World,
		stats:    d.Stats,
		cfg:      d.Config,
		store:    d.Store,
		session:  d.Session,
		notifier: d.Notifier,
		hooks:    d.Hooks,
		rng:      d.Rng,
		logger:   logger,
		variants: cache.NewVariantCache(),
	}

	resolver := spawn.NewResolver(d.World, zones, d.Rng)
	dir.engine, err = spawn.NewEngine(spawn.Deps{
		World:    d.World,
		Config:   d.Config,
		Resolver: resolver,
		Variants: dir.variants,
		Notifier: d.Notifier,
		Hooks:    d.Hooks,
		Rng:      d.Rng,
		Logger:   logger.With("component", "spawn"),
	})
	if err != nil {
		return nil, err
	}
	dir.heat, err = heat.NewManager(heat.Deps{
		World:    d.World,
		Config:   d.Config,
		Resolver: resolver,
		Notifier: d.Notifier,
		Hooks:    d.Hooks,
		Rng:      d.Rng,
		Logger:   logger.With("component", "heat"),
	})
	if err != nil {
		return nil, err
	}
	dir.votes = vote.NewCoordinator(d.Notifier, logger.With("component", "vote"), func() {
		dir.enterActive(dir.world.Now(), "vote")
	})

	dir.publish()
	return dir, nil
}

// Hooks returns the extension callback registry.
func (d *Director) Hooks() *hooks.Registry { return d.hooks }

// Heat returns the heat manager.
func (d *Director) Heat() *heat.Manager { return d.heat }

// Record returns a copy of the loaded record, or nil before it is loaded.
func (d *Director) Record() *core.SiegeRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return storage.Clone(d.rec)
}

// Tick is the host's high-frequency callback. Per tick it applies one
// deferred stat swap, ages the vote, evaluates the state machine about once a
// second, counts down dawn, re-targets, steps the spawn engine while ACTIVE
// and advances mini-horde jobs.
func (d *Director) Tick() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.engine.Stats().ProcessOne(d.stats)

	if !d.ensureRecord() {
		return
	}
	d.ticks++
	d.votes.Tick()

	// A buffer started by this tick's evaluation counts down from the next tick.
	wasDawn := d.rec.State == core.StateDawn
	now := d.world.Now()
	tickRate := d.tickRate()
	if (d.ticks-1)%tickRate == 0 {
		d.evaluate(now)
		d.flush()
	}

	if wasDawn && d.rec.State == core.StateDawn {
		d.dawnCountdown--
		if d.dawnCountdown <= 0 {
			d.finishDawn(now)
		}
	}

	if d.rec.State == core.StateActive {
		if interval := max(1, d.cfg.Int("siege.retargetIntervalTicks")); d.ticks%interval == 0 {
			if n := d.engine.Tracker().Retarget(d.world); n > 0 {
				d.logger.Debug("Re-anchored tracked hostiles", "count", n)
			}
		}
		d.engine.Step(d.rec, &d.run, now)
		d.dirty = true
	}

	d.heat.Tick(d.rec.State.Sieging())
	d.publish()
}

// EveryTenMinutes is the host's slow callback: heat presence, triggers and decay.
func (d *Director) EveryTenMinutes() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.heat.Cycle(d.world.Now(), d.sieging())
	d.publish()
}

// OnKill attributes a hostile death. Tagged siege spawns count as kills,
// anything else killed during ACTIVE counts as a bonus kill. Both count
// towards the target, so reaching it ends the siege on the spot.
func (d *Director) OnKill(ev core.KillEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ev.Melee && !d.sieging() {
		d.heat.OnMeleeKill(ev.Position)
	}
	variant, tagged := d.variants.Take(ev.EntityID)
	if d.rec == nil || d.rec.State != core.StateActive {
		return
	}

	if tagged {
		d.rec.KillsThisSiege++
		if variant.Special() {
			d.rec.SpecialKillsThisSiege++
		}
	} else {
		d.rec.BonusKills++
	}
	d.dirty = true

	if d.cleared() {
		d.beginDawn(reasonCleared)
		d.flush()
	}
	d.publish()
}

// OnWeaponFired deposits discharge heat at p. Heat is suspended while a
// siege is pending or running.
func (d *Director) OnWeaponFired(p core.Vec2, ranged bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sieging() {
		return
	}
	d.heat.OnWeaponFired(p, ranged)
}

func (d *Director) sieging() bool {
	return d.rec != nil && d.rec.State.Sieging()
}

// ForceStart starts a siege now from IDLE or WARNING.
func (d *Director) ForceStart(caller string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.ensureRecord() {
		return ErrNotReady
	}
	switch d.rec.State {
	case core.StateIdle, core.StateWarning:
		d.logger.Info("Siege forced", "by", caller)
		d.enterActive(d.world.Now(), "command")
		d.publish()
		return nil
	}
	return ErrSiegeActive
}

// ForceStop ends an ACTIVE siege through DAWN, or cancels a WARNING.
func (d *Director) ForceStop(caller string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.ensureRecord() {
		return ErrNotReady
	}
	now := d.world.Now()
	switch d.rec.State {
	case core.StateActive:
		d.logger.Info("Siege stopped", "by", caller)
		d.beginDawn(reasonStopped)
	case core.StateWarning:
		d.logger.Info("Siege warning cancelled", "by", caller)
		d.resetToIdle(now, "cancelled")
	default:
		return ErrNoSiege
	}
	d.flush()
	d.publish()
	return nil
}

// StartVote opens a vote to start a siege early.
func (d *Director) StartVote(caller string) (vote.Outcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.ensureRecord() {
		return vote.OutcomeRecorded, ErrNotReady
	}
	if !d.cfg.Bool("vote.enabled") {
		return vote.OutcomeRecorded, ErrVoteDisabled
	}
	connected := len(host.LiveActors(d.world.Actors()))
	timeout := max(1, d.cfg.Int("vote.timeoutSeconds")) * d.tickRate()
	out, err := d.votes.Start(caller, connected, timeout, d.rec.State != core.StateIdle)
	d.flush()
	d.publish()
	return out, err
}

// CastVote records a yes vote in the open vote.
func (d *Director) CastVote(caller string) (vote.Outcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	out, err := d.votes.Cast(caller)
	d.flush()
	d.publish()
	return out, err
}

// Flush persists pending record changes.
func (d *Director) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flush()
}

func (d *Director) tickRate() int {
	return max(1, d.cfg.Int("tick.rate"))
}

// ensureRecord loads the world's record the first time the store is ready
// and runs restart recovery on it.
func (d *Director) ensureRecord() bool {
	if d.rec != nil {
		return true
	}
	if d.store == nil || !d.store.Ready() {
		return false
	}
	freq := d.cfg.Int("siege.frequencyDays")
	rec, err := storage.GetOrCreate(d.store, d.session.World(), func() *core.SiegeRecord {
		return core.NewSiegeRecord(freq)
	})
	if err != nil {
		if d.loadErr == nil || d.loadErr.Error() != err.Error() {
			d.logger.Error("Failed to load siege record", "world", d.session.World(), "error", err)
		}
		d.loadErr = err
		return false
	}
	d.rec = rec
	d.loadErr = nil
	d.logger.Info("Siege record loaded",
		"world", d.session.World(),
		"state", rec.State,
		"nextSiegeDay", rec.NextSiegeDay,
		"completed", rec.TotalSiegesCompleted)
	d.recover(d.world.Now())
	d.flush()
	return true
}

func (d *Director) flush() {
	if d.rec == nil || !d.dirty {
		return
	}
	if d.store == nil || !d.store.Ready() {
		return
	}
	if err := d.store.Save(d.session.World(), d.rec); err != nil {
		d.logger.Error("Failed to persist siege record", "world", d.session.World(), "error", err)
		return
	}
	d.dirty = false
}
