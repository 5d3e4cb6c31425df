package siege

import (
	"log/slog"
	"time"

	"github.com/hordenight/siege/internal/wave"
	"github.com/hordenight/siege/pkg/core"
)

// Status is a point-in-time snapshot of the director, safe to read from
// any goroutine.
type Status struct {
	Loaded       bool            `json:"loaded"`
	World        string          `json:"world"`
	Time         string          `json:"time"`
	State        core.SiegeState `json:"state"`
	SiegeCount   int             `json:"siegeCount"`
	NextSiegeDay int             `json:"nextSiegeDay"`
	Direction    string          `json:"direction,omitempty"`
	Kills        int             `json:"kills"`
	BonusKills   int             `json:"bonusKills"`
	Target       int             `json:"target"`
	Spawned      int             `json:"spawned"`
	Wave         int             `json:"wave"`
	TotalWaves   int             `json:"totalWaves"`
	Phase        core.Phase      `json:"phase"`
	Completed    int             `json:"completed"`
	HeatCells    int             `json:"heatCells"`
	HottestCell  string          `json:"hottestCell,omitempty"`
	HottestHeat  float64         `json:"hottestHeat,omitempty"`
	MiniHordes   int             `json:"miniHordes"`
	VoteCurrent  int             `json:"voteCurrent,omitempty"`
	VoteNeeded   int             `json:"voteNeeded,omitempty"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// Status returns the latest snapshot.
func (d *Director) Status() Status {
	return *d.status.Load()
}

// LogAttrs returns the world and state attributes for the logging context handler.
func (d *Director) LogAttrs() []slog.Attr {
	s := d.status.Load()
	if s == nil {
		return nil
	}
	return []slog.Attr{
		slog.String("world", s.World),
		slog.String("siegeState", string(s.State)),
	}
}

func (d *Director) publish() {
	s := &Status{
		World:      d.session.World(),
		Time:       d.world.Now().String(),
		State:      core.StateIdle,
		HeatCells:  d.heat.Grid().Len(),
		MiniHordes: len(d.heat.Jobs()),
		UpdatedAt:  time.Now(),
	}
	if k, h, ok := d.heat.Grid().Hottest(); ok {
		s.HottestCell, s.HottestHeat = k.String(), h
	}
	if sess := d.votes.Session(); sess != nil {
		s.VoteCurrent, s.VoteNeeded = sess.Count(), sess.Needed
	}
	if r := d.rec; r != nil {
		s.Loaded = true
		s.State = r.State
		s.SiegeCount = r.SiegeCount
		s.NextSiegeDay = r.NextSiegeDay
		s.Kills = r.KillsThisSiege
		s.BonusKills = r.BonusKills
		s.Target = r.TargetZombies
		s.Spawned = r.SpawnedThisSiege
		s.Phase = r.CurrentPhase
		s.Completed = r.TotalSiegesCompleted
		if r.LastDirection >= 0 {
			s.Direction = r.LastDirection.String()
		}
		if r.State == core.StateActive {
			s.Wave = r.CurrentWaveIndex + 1
			s.TotalWaves = wave.Count(r.TargetZombies)
		}
	}
	d.status.Store(s)
}
