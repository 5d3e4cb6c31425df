package siege

import (
	"github.com/hordenight/siege/internal/hooks"
	"github.com/hordenight/siege/internal/util"
	"github.com/hordenight/siege/internal/wave"
	"github.com/hordenight/siege/pkg/core"
	"github.com/hordenight/siege/pkg/streaming"
)

// directionRerolls bounds the attempts to avoid repeating last siege's bearing.
const directionRerolls = 20

type dawnReason string

const (
	reasonCleared dawnReason = "cleared"
	reasonDawn    dawnReason = "dawn"
	reasonStopped dawnReason = "stopped"
)

type clock struct {
	warning, dusk, dawn float64
}

func (d *Director) clock() clock {
	return clock{
		warning: d.cfg.Float("siege.warningHour"),
		dusk:    d.cfg.Float("siege.duskHour"),
		dawn:    d.cfg.Float("siege.dawnHour"),
	}
}

func (c clock) night(h float64) bool    { return util.InHourWindow(h, c.dusk, c.dawn) }
func (c clock) evening(h float64) bool  { return util.InHourWindow(h, c.warning, c.dusk) }
func (c clock) daylight(h float64) bool { return util.InHourWindow(h, c.dawn, c.dusk) }

// daytime is the span in which no siege may be pending: dawn until warning.
func (c clock) daytime(h float64) bool { return util.InHourWindow(h, c.dawn, c.warning) }

// nightDay attributes the small hours to the previous evening's night.
func (c clock) nightDay(t core.GameTime) int {
	if t.HourF() < c.dawn {
		return t.Day - 1
	}
	return t.Day
}

// evaluate runs the gated state checks. All of them work from absolute
// day and hour so skipped ticks never strand a transition.
func (d *Director) evaluate(now core.GameTime) {
	c := d.clock()
	h := now.HourF()
	due := c.nightDay(now) >= d.rec.NextSiegeDay

	switch d.rec.State {
	case core.StateIdle:
		switch {
		case due && c.evening(h):
			d.enterWarning(now)
		case due && c.night(h):
			d.enterActive(now, "schedule")
		}
	case core.StateWarning:
		switch {
		case c.night(h):
			d.enterActive(now, "schedule")
		case c.daytime(h):
			d.resetToIdle(now, "missed")
		}
	case core.StateActive:
		if c.night(h) {
			d.sawNight = true
		}
		switch {
		case d.cleared():
			d.beginDawn(reasonCleared)
		case d.sawNight && c.daylight(h):
			d.beginDawn(reasonDawn)
		}
	}
}

func (d *Director) cleared() bool {
	return d.rec.TotalKills() >= d.rec.TargetZombies
}

// recover repairs a record loaded mid-cycle. A WARNING or ACTIVE found in
// daytime means the night was missed; an IDLE schedule in the past is rolled
// forward by whole periods.
func (d *Director) recover(now core.GameTime) {
	c := d.clock()
	h := now.HourF()
	freq := max(1, d.cfg.Int("siege.frequencyDays"))

	switch d.rec.State {
	case core.StateWarning, core.StateActive:
		if c.daytime(h) {
			d.logger.Info("Recovering stale siege state", "state", d.rec.State, "time", now.String())
			d.resetToIdle(now, "restart")
			return
		}
		if d.rec.State == core.StateActive {
			d.sawNight = c.night(h)
			d.siegeDay = c.nightDay(now)
			d.logger.Info("Resuming siege after restart",
				"wave", d.rec.CurrentWaveIndex+1,
				"phase", d.rec.CurrentPhase,
				"spawned", d.rec.SpawnedThisSiege,
				"target", d.rec.TargetZombies)
		}
	case core.StateDawn:
		d.siegeDay = c.nightDay(now)
		d.dawnCountdown = d.dawnBufferTicks()
	case core.StateIdle:
		today := c.nightDay(now)
		if d.rec.NextSiegeDay < today {
			for d.rec.NextSiegeDay < today {
				d.rec.NextSiegeDay += freq
			}
			d.dirty = true
			d.logger.Info("Advanced missed siege schedule", "nextSiegeDay", d.rec.NextSiegeDay)
		}
	}
}

func (d *Director) enterWarning(now core.GameTime) {
	d.rec.State = core.StateWarning
	d.dirty = true
	d.logger.Info("Siege warning", "day", now.Day, "siege", d.rec.SiegeCount+1)
	d.notifier.Broadcast(streaming.TypeStateChange, streaming.StateChangePayload{
		State:      string(core.StateWarning),
		SiegeCount: streaming.IntPtr(d.rec.SiegeCount + 1),
	})
}

func (d *Director) enterActive(now core.GameTime, cause string) {
	c := d.clock()

	d.rec.SiegeCount++
	d.rec.ResetSiegeCounters()
	d.rec.LastDirection = d.pickDirection(d.rec.LastDirection)
	d.rec.TargetZombies = d.targetCount()
	d.rec.State = core.StateActive
	d.dirty = true

	d.sawNight = c.night(now.HourF())
	d.siegeDay = c.nightDay(now)
	d.variants.Reset()
	d.votes.Cancel()

	plan := wave.Plan(d.rec.TargetZombies)
	d.logger.Info("Siege started",
		"siege", d.rec.SiegeCount,
		"cause", cause,
		"direction", d.rec.LastDirection.String(),
		"target", d.rec.TargetZombies,
		"waves", len(plan))
	d.notifier.Broadcast(streaming.TypeStateChange, streaming.StateChangePayload{
		State:         string(core.StateActive),
		SiegeCount:    streaming.IntPtr(d.rec.SiegeCount),
		Direction:     d.rec.LastDirection.String(),
		TargetZombies: streaming.IntPtr(d.rec.TargetZombies),
		TotalWaves:    streaming.IntPtr(len(plan)),
	})
	d.hooks.SiegeStart.Fire(hooks.SiegeStart{
		SiegeIndex:    d.rec.SiegeCount,
		Direction:     d.rec.LastDirection,
		TargetZombies: d.rec.TargetZombies,
	})

	d.engine.Begin(d.rec, &d.run)
}

// pickDirection draws a uniform bearing, re-rolling a bounded number of
// times to avoid repeating the previous one. The last draw is kept even if
// it repeats.
func (d *Director) pickDirection(last core.Direction) core.Direction {
	dir := core.Direction(d.rng.IntN(core.DirectionCount))
	for i := 0; dir == last && i < directionRerolls; i++ {
		dir = core.Direction(d.rng.IntN(core.DirectionCount))
	}
	return dir
}

func (d *Director) beginDawn(reason dawnReason) {
	d.rec.State = core.StateDawn
	d.dirty = true
	d.dawnCountdown = d.dawnBufferTicks()
	d.engine.End(&d.run)

	d.logger.Info("Siege ending",
		"siege", d.rec.SiegeCount,
		"reason", reason,
		"kills", d.rec.KillsThisSiege,
		"bonus", d.rec.BonusKills,
		"spawned", d.rec.SpawnedThisSiege,
		"target", d.rec.TargetZombies)
	d.notifier.Broadcast(streaming.TypeStateChange, streaming.StateChangePayload{
		State:        string(core.StateDawn),
		SpawnedTotal: streaming.IntPtr(d.rec.SpawnedThisSiege),
		Kills:        streaming.IntPtr(d.rec.KillsThisSiege),
		BonusKills:   streaming.IntPtr(d.rec.BonusKills),
		SpecialKills: streaming.IntPtr(d.rec.SpecialKillsThisSiege),
		DawnFallback: streaming.BoolPtr(reason == reasonDawn),
	})
}

func (d *Director) dawnBufferTicks() int {
	return max(1, d.cfg.Int("siege.dawnBufferSeconds")*d.tickRate())
}

// finishDawn records the siege in history and schedules the next one from
// the current day. Unkilled hostiles are left to the world.
func (d *Director) finishDawn(now core.GameTime) {
	entry := core.HistoryEntry{
		Kills:     d.rec.KillsThisSiege,
		Bonus:     d.rec.BonusKills,
		Specials:  d.rec.SpecialKillsThisSiege,
		Spawned:   d.rec.SpawnedThisSiege,
		Target:    d.rec.TargetZombies,
		Day:       d.siegeDay,
		Direction: d.rec.LastDirection,
	}
	total, spawned := d.rec.TotalKills(), d.rec.SpawnedThisSiege

	d.rec.History.Push(entry)
	d.rec.TotalSiegesCompleted++
	d.rec.TotalKillsAllTime += total
	d.rec.NextSiegeDay = now.Day + max(1, d.cfg.Int("siege.frequencyDays"))
	d.rec.ResetSiegeCounters()
	d.rec.CurrentPhase = core.PhaseComplete
	d.rec.State = core.StateIdle
	d.dirty = true
	d.variants.Reset()

	d.logger.Info("Siege complete", "siege", d.rec.SiegeCount, "kills", total, "nextSiegeDay", d.rec.NextSiegeDay)
	d.notifier.Broadcast(streaming.TypeStateChange, streaming.StateChangePayload{
		State:        string(core.StateIdle),
		NextSiegeDay: streaming.IntPtr(d.rec.NextSiegeDay),
	})
	d.hooks.SiegeEnd.Fire(hooks.SiegeEnd{
		SiegeIndex:   d.rec.SiegeCount,
		TotalKills:   total,
		TotalSpawned: spawned,
		Entry:        entry,
	})
	d.flush()
}

// resetToIdle abandons a pending or running siege without a history entry
// and pushes the schedule forward from the current day.
func (d *Director) resetToIdle(now core.GameTime, cause string) {
	d.engine.End(&d.run)
	d.rec.ResetSiegeCounters()
	d.rec.CurrentPhase = core.PhaseComplete
	d.rec.State = core.StateIdle
	d.rec.NextSiegeDay = now.Day + max(1, d.cfg.Int("siege.frequencyDays"))
	d.dirty = true
	d.variants.Reset()

	d.logger.Info("Siege reset to idle", "cause", cause, "nextSiegeDay", d.rec.NextSiegeDay)
	d.notifier.Broadcast(streaming.TypeStateChange, streaming.StateChangePayload{
		State:        string(core.StateIdle),
		NextSiegeDay: streaming.IntPtr(d.rec.NextSiegeDay),
	})
}
