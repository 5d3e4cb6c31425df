package siege

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hordenight/siege/internal/config"
	"github.com/hordenight/siege/internal/hooks"
	"github.com/hordenight/siege/internal/notify"
	"github.com/hordenight/siege/internal/session"
	"github.com/hordenight/siege/internal/simhost"
	"github.com/hordenight/siege/internal/storage/memory"
	"github.com/hordenight/siege/internal/vote"
	"github.com/hordenight/siege/pkg/core"
	"github.com/hordenight/siege/pkg/streaming"
)

const testWorld = "test-world"

type fixture struct {
	v     *viper.Viper
	world *simhost.World
	store *memory.Backend
	notes *notify.Recorder
	dir   *Director
}

func newFixture(t *testing.T, start core.GameTime) *fixture {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	v.Set("siege.dawnBufferSeconds", 1)

	f := &fixture{
		v:     v,
		world: simhost.New(start),
		store: memory.New(),
		notes: &notify.Recorder{},
	}
	f.world.AddActor("p1", core.Vec2{X: 5000, Y: 5000})

	sess := session.NewContext()
	sess.SetWorld(testWorld)

	dir, err := New(Deps{
		World:    f.world,
		Stats:    f.world,
		Config:   config.NewProvider(v, nil),
		Store:    f.store,
		Session:  sess,
		Notifier: f.notes,
		Hooks:    hooks.NewRegistry(nil),
		Rng:      rand.New(rand.NewPCG(3, 5)),
	})
	require.NoError(t, err)
	f.dir = dir
	return f
}

func (f *fixture) ready(t *testing.T) *fixture {
	t.Helper()
	require.NoError(t, f.store.Init())
	return f
}

func (f *fixture) tick(n int) {
	for range n {
		f.dir.Tick()
	}
}

func (f *fixture) state() core.SiegeState {
	return f.dir.Status().State
}

func (f *fixture) stateChanges() []streaming.StateChangePayload {
	var out []streaming.StateChangePayload
	for _, m := range f.notes.OfType(streaming.TypeStateChange) {
		out = append(out, m.Payload.(streaming.StateChangePayload))
	}
	return out
}

func (f *fixture) seed(t *testing.T, rec *core.SiegeRecord) {
	t.Helper()
	require.NoError(t, f.store.Save(testWorld, rec))
}

func TestNotReadyUntilStoreInit(t *testing.T) {
	f := newFixture(t, core.GameTime{Day: 7, Hour: 22})

	f.tick(120)
	assert.False(t, f.dir.Status().Loaded)
	assert.Nil(t, f.dir.Record())
	assert.ErrorIs(t, f.dir.ForceStart("admin"), ErrNotReady)

	f.ready(t)
	f.tick(1)
	assert.True(t, f.dir.Status().Loaded)
	assert.Equal(t, core.StateActive, f.state())
}

func TestScheduledWarningThenActive(t *testing.T) {
	f := newFixture(t, core.GameTime{Day: 7, Hour: 19, Minute: 30}).ready(t)

	f.tick(1)
	assert.Equal(t, core.StateWarning, f.state())

	f.world.SetTime(core.GameTime{Day: 7, Hour: 21})
	f.tick(60)
	require.Equal(t, core.StateActive, f.state())

	rec := f.dir.Record()
	assert.Equal(t, 1, rec.SiegeCount)
	assert.Equal(t, 40, rec.TargetZombies)
	assert.GreaterOrEqual(t, int(rec.LastDirection), 0)

	changes := f.stateChanges()
	require.Len(t, changes, 2)
	assert.Equal(t, "WARNING", changes[0].State)
	assert.Equal(t, "ACTIVE", changes[1].State)
	assert.Equal(t, 40, *changes[1].TargetZombies)
	assert.Equal(t, 3, *changes[1].TotalWaves)

	f.tick(300)
	assert.Positive(t, f.dir.Record().SpawnedThisSiege, "engine should spawn while ACTIVE")
}

func TestLateDetectionSkipsWarning(t *testing.T) {
	f := newFixture(t, core.GameTime{Day: 8, Hour: 2}).ready(t)
	f.seed(t, core.NewSiegeRecord(7))

	f.tick(1)
	assert.Equal(t, core.StateActive, f.state())
	changes := f.stateChanges()
	require.Len(t, changes, 1)
	assert.Equal(t, "ACTIVE", changes[0].State)
}

func TestNotDueStaysIdle(t *testing.T) {
	f := newFixture(t, core.GameTime{Day: 3, Hour: 22}).ready(t)
	f.tick(120)
	assert.Equal(t, core.StateIdle, f.state())
	assert.Empty(t, f.notes.Messages())
}

func TestClearedPathAtExactTarget(t *testing.T) {
	f := newFixture(t, core.GameTime{Day: 7, Hour: 21}).ready(t)
	f.v.Set("siege.baseZombies", 100)

	f.tick(1)
	require.Equal(t, core.StateActive, f.state())
	require.Equal(t, 100, f.dir.Record().TargetZombies)

	for i := range 99 {
		f.dir.OnKill(core.KillEvent{EntityID: fmt.Sprintf("other-%d", i)})
	}
	assert.Equal(t, core.StateActive, f.state())

	f.dir.OnKill(core.KillEvent{EntityID: "other-99"})
	assert.Equal(t, core.StateDawn, f.state())

	changes := f.stateChanges()
	last := changes[len(changes)-1]
	assert.Equal(t, "DAWN", last.State)
	require.NotNil(t, last.DawnFallback)
	assert.False(t, *last.DawnFallback)
	assert.Equal(t, 100, *last.BonusKills)
}

func TestTaggedAndSpecialKills(t *testing.T) {
	f := newFixture(t, core.GameTime{Day: 7, Hour: 21}).ready(t)
	f.tick(200)

	ents := f.world.Entities()
	require.NotEmpty(t, ents)
	f.dir.OnKill(f.world.Kill(ents[0].ID(), "p1", false))
	f.dir.OnKill(f.world.Kill(ents[0].ID(), "p1", false))
	f.dir.OnKill(core.KillEvent{EntityID: "wanderer"})

	rec := f.dir.Record()
	assert.Equal(t, 1, rec.KillsThisSiege)
	assert.Equal(t, 2, rec.BonusKills, "a repeat report of a consumed tag counts as bonus")
	assert.Equal(t, 3, rec.TotalKills())
}

func TestKillsIgnoredOutsideActive(t *testing.T) {
	f := newFixture(t, core.GameTime{Day: 2, Hour: 12}).ready(t)
	f.tick(1)
	f.dir.OnKill(core.KillEvent{EntityID: "x"})
	assert.Equal(t, 0, f.dir.Record().BonusKills)
}

func TestDawnFallback(t *testing.T) {
	f := newFixture(t, core.GameTime{Day: 7, Hour: 21}).ready(t)
	f.tick(1)
	require.Equal(t, core.StateActive, f.state())

	f.world.SetTime(core.GameTime{Day: 8, Hour: 5, Minute: 59})
	f.tick(60)
	require.Equal(t, core.StateActive, f.state())

	f.world.SetTime(core.GameTime{Day: 8, Hour: 6})
	f.tick(60)
	require.Equal(t, core.StateDawn, f.state())

	changes := f.stateChanges()
	dawn := changes[len(changes)-1]
	require.NotNil(t, dawn.DawnFallback)
	assert.True(t, *dawn.DawnFallback)

	f.tick(60)
	require.Equal(t, core.StateIdle, f.state())

	rec := f.dir.Record()
	assert.Equal(t, 15, rec.NextSiegeDay)
	assert.Equal(t, 1, rec.TotalSiegesCompleted)
	require.Equal(t, 1, rec.History.Len())
	entry, _ := rec.History.Latest()
	assert.Equal(t, 7, entry.Day)
	assert.Equal(t, 40, entry.Target)
	assert.Zero(t, rec.SpawnedThisSiege)

	stored, err := f.store.Get(testWorld)
	require.NoError(t, err)
	assert.Equal(t, core.StateIdle, stored.State)
	assert.Equal(t, 1, stored.History.Len())
}

func TestForcedDaytimeSiegeRunsIntoNight(t *testing.T) {
	f := newFixture(t, core.GameTime{Day: 2, Hour: 10}).ready(t)
	f.tick(1)
	require.NoError(t, f.dir.ForceStart("admin"))
	require.Equal(t, core.StateActive, f.state())

	f.tick(120)
	assert.Equal(t, core.StateActive, f.state(), "no dawn fallback before a night was seen")

	f.world.SetTime(core.GameTime{Day: 2, Hour: 23})
	f.tick(60)
	f.world.SetTime(core.GameTime{Day: 3, Hour: 7})
	f.tick(60)
	assert.Equal(t, core.StateDawn, f.state())
}

func TestHistoryKeepsLatestTwenty(t *testing.T) {
	f := newFixture(t, core.GameTime{Day: 7, Hour: 12}).ready(t)
	f.tick(1)

	for i := range 25 {
		require.NoError(t, f.dir.ForceStart("admin"))
		for k := range i {
			f.dir.OnKill(core.KillEvent{EntityID: fmt.Sprintf("b-%d-%d", i, k)})
		}
		require.NoError(t, f.dir.ForceStop("admin"))
		f.tick(60)
		require.Equal(t, core.StateIdle, f.state(), "siege %d", i)
	}

	rec := f.dir.Record()
	assert.Equal(t, 25, rec.TotalSiegesCompleted)
	require.Equal(t, core.HistoryLimit, rec.History.Len())
	entries := rec.History.Entries()
	assert.Equal(t, 5, entries[0].Bonus)
	assert.Equal(t, 24, entries[19].Bonus)

	stored, err := f.store.Get(testWorld)
	require.NoError(t, err)
	assert.Equal(t, core.HistoryLimit, stored.History.Len())
}

func TestForceCommands(t *testing.T) {
	f := newFixture(t, core.GameTime{Day: 2, Hour: 12}).ready(t)
	f.tick(1)

	assert.ErrorIs(t, f.dir.ForceStop("admin"), ErrNoSiege)
	require.NoError(t, f.dir.ForceStart("admin"))
	assert.ErrorIs(t, f.dir.ForceStart("admin"), ErrSiegeActive)

	require.NoError(t, f.dir.ForceStop("admin"))
	assert.Equal(t, core.StateDawn, f.state())
	assert.ErrorIs(t, f.dir.ForceStart("admin"), ErrSiegeActive)
	assert.ErrorIs(t, f.dir.ForceStop("admin"), ErrNoSiege)
}

func TestForceStopCancelsWarning(t *testing.T) {
	f := newFixture(t, core.GameTime{Day: 7, Hour: 20}).ready(t)
	f.tick(1)
	require.Equal(t, core.StateWarning, f.state())

	require.NoError(t, f.dir.ForceStop("admin"))
	assert.Equal(t, core.StateIdle, f.state())
	assert.Equal(t, 14, f.dir.Record().NextSiegeDay)
	assert.Equal(t, 0, f.dir.Record().TotalSiegesCompleted)
}

func TestWarningFoundInDaytimeResets(t *testing.T) {
	f := newFixture(t, core.GameTime{Day: 7, Hour: 20}).ready(t)
	f.tick(1)
	require.Equal(t, core.StateWarning, f.state())

	f.world.SetTime(core.GameTime{Day: 8, Hour: 9})
	f.tick(60)
	assert.Equal(t, core.StateIdle, f.state())
	assert.Equal(t, 15, f.dir.Record().NextSiegeDay)
}

func TestVoteQuorumStartsSiege(t *testing.T) {
	f := newFixture(t, core.GameTime{Day: 3, Hour: 12}).ready(t)
	for _, id := range []string{"p2", "p3", "p4"} {
		f.world.AddActor(id, core.Vec2{X: 5010, Y: 5000})
	}
	f.tick(1)

	out, err := f.dir.StartVote("p1")
	require.NoError(t, err)
	assert.Equal(t, vote.OutcomeRecorded, out)
	status := f.dir.Status()
	assert.Equal(t, 1, status.VoteCurrent)
	assert.Equal(t, 2, status.VoteNeeded)

	_, err = f.dir.CastVote("p1")
	assert.ErrorIs(t, err, vote.ErrDuplicateVote)

	out, err = f.dir.CastVote("p2")
	require.NoError(t, err)
	assert.Equal(t, vote.OutcomePassed, out)
	assert.Equal(t, core.StateActive, f.state())
	assert.Equal(t, 160, f.dir.Record().TargetZombies)
	assert.Len(t, f.notes.OfType(streaming.TypeVotePassed), 1)
}

func TestVoteRejectedWhileSieging(t *testing.T) {
	f := newFixture(t, core.GameTime{Day: 7, Hour: 22}).ready(t)
	f.tick(1)
	_, err := f.dir.StartVote("p1")
	assert.ErrorIs(t, err, vote.ErrSiegeInProgress)
}

func TestVoteDisabled(t *testing.T) {
	f := newFixture(t, core.GameTime{Day: 3, Hour: 12}).ready(t)
	f.v.Set("vote.enabled", false)
	f.tick(1)
	_, err := f.dir.StartVote("p1")
	assert.ErrorIs(t, err, ErrVoteDisabled)
}

func TestVoteTimesOut(t *testing.T) {
	f := newFixture(t, core.GameTime{Day: 3, Hour: 12}).ready(t)
	f.world.AddActor("p2", core.Vec2{X: 5010, Y: 5000})
	f.world.AddActor("p3", core.Vec2{X: 5020, Y: 5000})
	f.v.Set("vote.timeoutSeconds", 1)
	f.tick(1)

	_, err := f.dir.StartVote("p1")
	require.NoError(t, err)
	f.tick(60)

	assert.Len(t, f.notes.OfType(streaming.TypeVoteFailed), 1)
	assert.Equal(t, core.StateIdle, f.state())
	_, err = f.dir.CastVote("p2")
	assert.ErrorIs(t, err, vote.ErrNoVote)
}

func TestRestartRecovery(t *testing.T) {
	tests := []struct {
		name      string
		rec       func() *core.SiegeRecord
		now       core.GameTime
		wantState core.SiegeState
		wantNext  int
	}{
		{
			name: "active found in daytime",
			rec: func() *core.SiegeRecord {
				r := core.NewSiegeRecord(7)
				r.State = core.StateActive
				r.SiegeCount = 1
				r.TargetZombies = 40
				return r
			},
			now:       core.GameTime{Day: 8, Hour: 10},
			wantState: core.StateIdle,
			wantNext:  15,
		},
		{
			name: "warning found in daytime",
			rec: func() *core.SiegeRecord {
				r := core.NewSiegeRecord(7)
				r.State = core.StateWarning
				return r
			},
			now:       core.GameTime{Day: 9, Hour: 8},
			wantState: core.StateIdle,
			wantNext:  16,
		},
		{
			name:      "idle schedule in the past",
			rec:       func() *core.SiegeRecord { return core.NewSiegeRecord(7) },
			now:       core.GameTime{Day: 20, Hour: 12},
			wantState: core.StateIdle,
			wantNext:  21,
		},
		{
			name:      "idle schedule due tonight is kept",
			rec:       func() *core.SiegeRecord { return core.NewSiegeRecord(7) },
			now:       core.GameTime{Day: 7, Hour: 12},
			wantState: core.StateIdle,
			wantNext:  7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.now).ready(t)
			f.seed(t, tt.rec())

			f.tick(1)

			rec := f.dir.Record()
			assert.Equal(t, tt.wantState, rec.State)
			assert.Equal(t, tt.wantNext, rec.NextSiegeDay)

			stored, err := f.store.Get(testWorld)
			require.NoError(t, err)
			assert.Equal(t, tt.wantNext, stored.NextSiegeDay)
		})
	}
}

func TestRestartMidSiegeResumes(t *testing.T) {
	f := newFixture(t, core.GameTime{Day: 7, Hour: 23}).ready(t)
	rec := core.NewSiegeRecord(7)
	rec.State = core.StateActive
	rec.SiegeCount = 1
	rec.ResetSiegeCounters()
	rec.TargetZombies = 75
	rec.SpawnedThisSiege = 20
	rec.CurrentWaveIndex = 1
	rec.CurrentPhase = core.PhaseWave
	rec.LastDirection = core.East
	f.seed(t, rec)

	f.tick(300)

	got := f.dir.Record()
	assert.Equal(t, core.StateActive, got.State)
	assert.Greater(t, got.SpawnedThisSiege, 20)
	assert.Equal(t, 1, got.SiegeCount)

	f.world.SetTime(core.GameTime{Day: 8, Hour: 6})
	f.tick(60)
	assert.Equal(t, core.StateDawn, f.state(), "a siege resumed at night still gets the dawn fallback")
}

func TestHookFailureDoesNotAbortTransition(t *testing.T) {
	f := newFixture(t, core.GameTime{Day: 2, Hour: 12}).ready(t)
	var second bool
	f.dir.Hooks().SiegeStart.Subscribe("broken", func(hooks.SiegeStart) error { panic("boom") })
	f.dir.Hooks().SiegeStart.Subscribe("failing", func(hooks.SiegeStart) error { return errors.New("nope") })
	f.dir.Hooks().SiegeStart.Subscribe("ok", func(ev hooks.SiegeStart) error {
		second = ev.SiegeIndex == 1
		return nil
	})
	f.tick(1)

	require.NoError(t, f.dir.ForceStart("admin"))
	assert.Equal(t, core.StateActive, f.state())
	assert.True(t, second)
}

func TestSiegeEndHook(t *testing.T) {
	f := newFixture(t, core.GameTime{Day: 2, Hour: 12}).ready(t)
	var got []hooks.SiegeEnd
	f.dir.Hooks().SiegeEnd.Subscribe("collect", func(ev hooks.SiegeEnd) error {
		got = append(got, ev)
		return nil
	})
	f.tick(1)

	require.NoError(t, f.dir.ForceStart("admin"))
	f.dir.OnKill(core.KillEvent{EntityID: "a"})
	f.dir.OnKill(core.KillEvent{EntityID: "b"})
	require.NoError(t, f.dir.ForceStop("admin"))
	f.tick(60)

	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].SiegeIndex)
	assert.Equal(t, 2, got[0].TotalKills)
	assert.Equal(t, 2, got[0].Entry.Bonus)
}

func TestHeatPausedWhileSieging(t *testing.T) {
	f := newFixture(t, core.GameTime{Day: 2, Hour: 12}).ready(t)
	f.tick(1)

	f.dir.OnWeaponFired(core.Vec2{X: 5000, Y: 5000}, true)
	f.dir.EveryTenMinutes()
	before := f.dir.Heat().Grid().Heat(core.Vec2{X: 5000, Y: 5000})
	assert.Positive(t, before)

	require.NoError(t, f.dir.ForceStart("admin"))
	f.dir.EveryTenMinutes()
	after := f.dir.Heat().Grid().Heat(core.Vec2{X: 5000, Y: 5000})
	assert.Less(t, after, before, "sieging cycles only decay")
}

func TestPickDirectionAvoidsRepeat(t *testing.T) {
	f := newFixture(t, core.GameTime{Day: 2, Hour: 12})
	for range 200 {
		assert.NotEqual(t, core.South, f.dir.pickDirection(core.South))
	}
}

func TestStatusLogAttrs(t *testing.T) {
	f := newFixture(t, core.GameTime{Day: 7, Hour: 20}).ready(t)
	f.tick(1)

	attrs := f.dir.LogAttrs()
	require.Len(t, attrs, 2)
	assert.Equal(t, testWorld, attrs[0].Value.String())
	assert.Equal(t, "WARNING", attrs[1].Value.String())
}

func TestSiegeGunfireLeavesNoHeat(t *testing.T) {
	f := newFixture(t, core.GameTime{Day: 2, Hour: 12}).ready(t)
	base := core.Vec2{X: 5000, Y: 5000}
	f.tick(1)

	require.NoError(t, f.dir.ForceStart("admin"))
	for range 10 {
		f.dir.OnWeaponFired(base, true)
	}
	f.dir.OnKill(core.KillEvent{EntityID: "stray", Position: base, Melee: true})
	assert.Zero(t, f.dir.Heat().Grid().Heat(base))

	require.NoError(t, f.dir.ForceStop("admin"))
	f.tick(60)
	require.Equal(t, core.StateIdle, f.state())

	f.dir.EveryTenMinutes()
	assert.Less(t, f.dir.Heat().Grid().Heat(base), f.v.GetFloat64("heat.threshold"))
	assert.Empty(t, f.dir.Heat().Jobs(), "no mini-horde right after a siege")

	st := f.dir.Status()
	assert.Equal(t, core.CellOf(base).String(), st.HottestCell)
	assert.Positive(t, st.HottestHeat)
}

func TestDawnBufferLength(t *testing.T) {
	t.Run("entered by evaluation", func(t *testing.T) {
		f := newFixture(t, core.GameTime{Day: 7, Hour: 21}).ready(t)
		f.tick(1)
		require.Equal(t, core.StateActive, f.state())

		f.world.SetTime(core.GameTime{Day: 8, Hour: 6})
		f.tick(60)
		require.Equal(t, core.StateDawn, f.state())

		f.tick(59)
		assert.Equal(t, core.StateDawn, f.state())
		f.tick(1)
		assert.Equal(t, core.StateIdle, f.state())
	})

	t.Run("entered by the final kill", func(t *testing.T) {
		f := newFixture(t, core.GameTime{Day: 7, Hour: 21}).ready(t)
		f.tick(1)
		target := f.dir.Record().TargetZombies
		for i := range target {
			f.dir.OnKill(core.KillEvent{EntityID: fmt.Sprintf("k-%d", i)})
		}
		require.Equal(t, core.StateDawn, f.state())

		f.tick(59)
		assert.Equal(t, core.StateDawn, f.state())
		f.tick(1)
		assert.Equal(t, core.StateIdle, f.state())
	})
}
