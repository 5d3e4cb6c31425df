package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/hordenight/siege/internal/config"
	"github.com/hordenight/siege/internal/dispatcher"
	"github.com/hordenight/siege/internal/geo"
	"github.com/hordenight/siege/internal/handlers"
	"github.com/hordenight/siege/internal/heat"
	"github.com/hordenight/siege/internal/hooks"
	"github.com/hordenight/siege/internal/influx"
	"github.com/hordenight/siege/internal/logging"
	"github.com/hordenight/siege/internal/monitor"
	"github.com/hordenight/siege/internal/notify"
	"github.com/hordenight/siege/internal/session"
	"github.com/hordenight/siege/internal/siege"
	"github.com/hordenight/siege/internal/simhost"
	"github.com/hordenight/siege/internal/storage"
	"github.com/hordenight/siege/internal/storage/factory"
	"github.com/hordenight/siege/pkg/core"
	"github.com/hordenight/siege/pkg/host"
	"github.com/hordenight/siege/pkg/streaming"
)

// Set once the run command has built them; read by the log context provider.
var (
	activeDirector atomic.Pointer[siege.Director]
	activeSession  atomic.Pointer[session.Context]
)

type runOptions struct {
	World            string
	Days             int
	StartDay         int
	StartHour        int
	Players          int
	Base             string
	Generator        bool
	MinutesPerSecond int
	KillsPerSecond   float64
	FireChance       float64
	VoteDay          int
	Seed             uint64
	Realtime         bool
	Watch            bool
}

func cmdRun(args []string) error {
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	configDir := commonFlags(fs)

	var opts runOptions
	fs.StringVar(&opts.World, "world", "sim-world", "world key the siege record is stored under")
	fs.IntVar(&opts.Days, "days", 14, "game days to simulate")
	fs.IntVar(&opts.StartDay, "start-day", 1, "game day to start on")
	fs.IntVar(&opts.StartHour, "start-hour", 8, "game hour to start at")
	fs.IntVar(&opts.Players, "players", 2, "connected participants")
	fs.StringVar(&opts.Base, "base", "5000,5000", "base position the players defend, as x,y")
	fs.BoolVar(&opts.Generator, "generator", false, "place a running power source at the base")
	fs.IntVar(&opts.MinutesPerSecond, "minutes-per-second", 2, "game minutes that pass per simulated second")
	fs.Float64Var(&opts.KillsPerSecond, "kills-per-second", 0.5, "hostiles the defenders kill per simulated second")
	fs.Float64Var(&opts.FireChance, "fire-chance", 0.05, "chance per second of a stray weapon discharge")
	fs.IntVar(&opts.VoteDay, "vote-day", 0, "game day at noon on which the players vote to start a siege (0 disables)")
	fs.Uint64Var(&opts.Seed, "seed", uint64(time.Now().UnixNano()), "random seed")
	fs.BoolVar(&opts.Realtime, "realtime", false, "pace the simulation at one simulated second per real second")
	fs.BoolVar(&opts.Watch, "watch", false, "reload the config file when it changes")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if opts.Days <= 0 || opts.MinutesPerSecond <= 0 {
		return errors.New("--days and --minutes-per-second must be positive")
	}
	if _, err := geo.Vec2FromString(opts.Base); err != nil {
		return fmt.Errorf("--base %q: %w", opts.Base, err)
	}
	if err := setup(*configDir); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return runSimulation(ctx, opts)
}

// logContext stamps every record with the world, siege state and session.
func logContext() []slog.Attr {
	var attrs []slog.Attr
	if d := activeDirector.Load(); d != nil {
		attrs = d.LogAttrs()
	}
	if s := activeSession.Load(); s != nil {
		attrs = append(attrs, slog.String("session", s.ID().String()))
	}
	return attrs
}

func openStore() (storage.Backend, error) {
	cfg := config.GetStorageConfig()
	b, err := factory.NewBackend(cfg, SlogManager, ZLogger.With().Str("component", "database").Logger())
	if err != nil {
		return nil, err
	}
	if err := b.Init(); err != nil {
		return nil, fmt.Errorf("initializing %s storage: %w", cfg.Type, err)
	}
	Logger.Info("Storage backend initialized", "type", cfg.Type)
	return b, nil
}

func runSimulation(ctx context.Context, opts runOptions) error {
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	sess := session.NewContext()
	sess.SetWorld(opts.World)
	activeSession.Store(sess)

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	base, err := geo.Vec2FromString(opts.Base)
	if err != nil {
		return err
	}
	world := simhost.New(core.GameTime{Day: opts.StartDay, Hour: opts.StartHour})
	for i := range opts.Players {
		angle := 2 * math.Pi * float64(i) / float64(opts.Players)
		world.AddActor(fmt.Sprintf("player%d", i+1), base.Add(core.Vec2{X: 8 * math.Cos(angle), Y: 8 * math.Sin(angle)}))
	}
	if opts.Generator {
		world.AddGenerator(base)
	}

	broadcaster := notify.NewBroadcaster(Logger.With("component", "notify"), notify.NewHostSink(world))
	if nc := config.GetNotifyConfig(); nc.WebsocketURL != "" {
		ws := notify.NewWebsocketSink(notify.WebsocketConfig{URL: nc.WebsocketURL, Secret: nc.Secret}, Logger.With("component", "websocket"))
		if err := ws.Open(streaming.HelloPayload{World: sess.World(), Session: sess.ID().String()}); err != nil {
			Logger.Error("Failed to open notification stream", "url", nc.WebsocketURL, "error", err)
		} else {
			broadcaster.AddSink(ws)
			defer ws.Close()
		}
	}

	cfg := config.Global(Logger)
	registry := hooks.NewRegistry(Logger.With("component", "hooks"))
	if ic := config.GetInfluxConfig(); ic.Enabled {
		im := influx.NewManager(ic, ZLogger.With().Str("component", "influx").Logger(),
			filepath.Join(statusDir(), "influx_backup.log.gz"))
		if err := im.Connect(); err != nil {
			Logger.Error("Failed to initialize InfluxDB", "error", err)
		} else {
			im.Subscribe(registry, sess.World)
			defer im.Close()
		}
	}
	printEvents(registry)

	dir, err := siege.New(siege.Deps{
		World:    world,
		Stats:    world,
		Config:   cfg,
		Store:    store,
		Session:  sess,
		Notifier: broadcaster,
		Hooks:    registry,
		Rng:      rng,
		Logger:   Logger.With("component", "director"),
	})
	if err != nil {
		return err
	}
	activeDirector.Store(dir)
	defer dir.Flush()

	d, err := dispatcher.New(logging.NewDispatcherLogger(ZLogger.With().Str("component", "dispatcher").Logger()))
	if err != nil {
		return err
	}
	handlers.NewService(handlers.Dependencies{Director: dir, LogManager: SlogManager}).Register(d)

	mon := monitor.NewService(monitor.Dependencies{Source: dir, LogManager: SlogManager, Dir: statusDir()})
	if err := mon.Start(); err != nil {
		return err
	}
	defer mon.Stop()

	// Every startup read of the global config is done; from here on it is
	// only read through cfg, which serialises reloads.
	if opts.Watch {
		if err := cfg.Watch(ctx); err != nil {
			Logger.Warn("Config reload disabled", "error", err)
		}
	}

	Logger.Info("Simulation starting",
		"world", opts.World,
		"days", opts.Days,
		"players", opts.Players,
		"seed", opts.Seed,
		"storage", config.GetStorageConfig().Type)

	sim := &combat{world: world, dir: dir, cfg: cfg, rng: rng, opts: opts}
	if err := sim.loop(ctx, d); err != nil {
		return err
	}

	dir.Flush()
	if rec := dir.Record(); rec != nil {
		fmt.Printf("\n%s: %d sieges completed, %d kills all time, next siege on day %d\n",
			opts.World, rec.TotalSiegesCompleted, rec.TotalKillsAllTime, rec.NextSiegeDay)
		return printHistory(os.Stdout, rec)
	}
	return nil
}

// printEvents echoes siege milestones to stdout.
func printEvents(reg *hooks.Registry) {
	reg.SiegeStart.Subscribe("stdout", func(ev hooks.SiegeStart) error {
		fmt.Printf("siege #%d begins from %s, %d hostiles\n", ev.SiegeIndex, ev.Direction, ev.TargetZombies)
		return nil
	})
	reg.WaveStart.Subscribe("stdout", func(ev hooks.WaveStart) error {
		fmt.Printf("  wave %d/%d\n", ev.WaveIndex, ev.TotalWaves)
		return nil
	})
	reg.SiegeEnd.Subscribe("stdout", func(ev hooks.SiegeEnd) error {
		fmt.Printf("siege #%d over: %d kills, %d spawned\n", ev.SiegeIndex, ev.TotalKills, ev.TotalSpawned)
		return nil
	})
	reg.MiniHorde.Subscribe("stdout", func(ev hooks.MiniHorde) error {
		fmt.Printf("mini-horde of %d near %s from %s\n", ev.Count, ev.CellKey, ev.Direction)
		return nil
	})
}

// combat drives the simulated host: time, defenders' kills, weapon fire and
// the scripted vote.
type combat struct {
	world *simhost.World
	dir   *siege.Director
	cfg   *config.Provider
	rng   *rand.Rand
	opts  runOptions
	carry float64
	voted bool
}

func (c *combat) loop(ctx context.Context, d *dispatcher.Dispatcher) error {
	tickRate := max(1, c.cfg.Int("tick.rate"))
	end := core.GameTime{Day: c.opts.StartDay + c.opts.Days, Hour: c.opts.StartHour}.Minutes()
	lastCycle := c.world.Now().Minutes() / heat.CycleMinutes

	var pace <-chan time.Time
	if c.opts.Realtime {
		t := time.NewTicker(time.Second)
		defer t.Stop()
		pace = t.C
	}

	for c.world.Now().Minutes() < end {
		if err := ctx.Err(); err != nil {
			Logger.Info("Simulation interrupted", "time", c.world.Now().String())
			return nil
		}

		for range tickRate {
			c.dir.Tick()
		}
		c.world.Advance(c.opts.MinutesPerSecond)
		for cycle := c.world.Now().Minutes() / heat.CycleMinutes; lastCycle < cycle; {
			lastCycle++
			c.dir.EveryTenMinutes()
		}

		c.fight()
		c.vote(d)
		for _, dl := range c.world.TakeDeliveries() {
			Logger.Debug("Host delivery", "recipients", len(dl.Recipients), "bytes", len(dl.Envelope))
		}

		if pace != nil {
			select {
			case <-ctx.Done():
			case <-pace:
			}
		}
	}
	return nil
}

func (c *combat) fight() {
	actors := host.LiveActors(c.world.Actors())
	if len(actors) == 0 {
		return
	}
	if c.rng.Float64() < c.opts.FireChance {
		c.dir.OnWeaponFired(actors[c.rng.IntN(len(actors))].Position(), true)
	}

	ents := c.world.Entities()
	c.carry += c.opts.KillsPerSecond
	for c.carry >= 1 && len(ents) > 0 {
		c.carry--
		e := ents[0]
		ents = ents[1:]
		a := actors[c.rng.IntN(len(actors))]
		melee := c.rng.Float64() < 0.3
		if !melee {
			c.dir.OnWeaponFired(a.Position(), true)
		}
		c.dir.OnKill(c.world.Kill(e.ID(), a.ID(), melee))
	}
	if len(ents) == 0 {
		c.carry = min(c.carry, 1)
	}
}

func (c *combat) vote(d *dispatcher.Dispatcher) {
	if c.voted || c.opts.VoteDay <= 0 {
		return
	}
	now := c.world.Now()
	if now.Day != c.opts.VoteDay || now.Hour < 12 {
		return
	}
	c.voted = true

	for i, a := range host.LiveActors(c.world.Actors()) {
		cmd := handlers.CmdSiegeVoteYes
		if i == 0 {
			cmd = handlers.CmdSiegeVote
		}
		res, err := d.Dispatch(dispatcher.Event{Command: cmd, Caller: a.ID()})
		if err != nil {
			Logger.Info("Vote rejected", "caller", a.ID(), "error", err)
			if i == 0 {
				return
			}
			continue
		}
		fmt.Printf("%s: %v\n", a.ID(), res)
	}
}
