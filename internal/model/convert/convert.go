// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"github.com/hordenight/siege/internal/model"
	"github.com/hordenight/siege/pkg/core"
	"gorm.io/datatypes"
)

// CoreToSiegeRecord converts a core.SiegeRecord to a GORM model.SiegeRecord keyed by worldKey.
func CoreToSiegeRecord(worldKey string, r *core.SiegeRecord) model.SiegeRecord {
	return model.SiegeRecord{
		WorldKey:              worldKey,
		State:                 string(r.State),
		SiegeCount:            r.SiegeCount,
		NextSiegeDay:          r.NextSiegeDay,
		LastDirection:         int(r.LastDirection),
		SpawnedThisSiege:      r.SpawnedThisSiege,
		TargetZombies:         r.TargetZombies,
		KillsThisSiege:        r.KillsThisSiege,
		BonusKills:            r.BonusKills,
		SpecialKillsThisSiege: r.SpecialKillsThisSiege,
		TanksSpawned:          r.TanksSpawned,
		CurrentWaveIndex:      r.CurrentWaveIndex,
		CurrentPhase:          string(r.CurrentPhase),
		TotalSiegesCompleted:  r.TotalSiegesCompleted,
		TotalKillsAllTime:     r.TotalKillsAllTime,
		History:               datatypes.NewJSONSlice(r.History.Entries()),
	}
}

// SiegeRecordToCore converts a GORM model.SiegeRecord to a core.SiegeRecord.
// Unknown state or phase strings fall back to IDLE and COMPLETE.
func SiegeRecordToCore(m model.SiegeRecord) *core.SiegeRecord {
	r := &core.SiegeRecord{
		State:                 parseState(m.State),
		SiegeCount:            m.SiegeCount,
		NextSiegeDay:          m.NextSiegeDay,
		LastDirection:         core.Direction(m.LastDirection),
		SpawnedThisSiege:      m.SpawnedThisSiege,
		TargetZombies:         m.TargetZombies,
		KillsThisSiege:        m.KillsThisSiege,
		BonusKills:            m.BonusKills,
		SpecialKillsThisSiege: m.SpecialKillsThisSiege,
		TanksSpawned:          m.TanksSpawned,
		CurrentWaveIndex:      m.CurrentWaveIndex,
		CurrentPhase:          parsePhase(m.CurrentPhase),
		TotalSiegesCompleted:  m.TotalSiegesCompleted,
		TotalKillsAllTime:     m.TotalKillsAllTime,
		History:               core.NewHistory(m.History),
	}
	return r
}

func parseState(s string) core.SiegeState {
	switch st := core.SiegeState(s); st {
	case core.StateIdle, core.StateWarning, core.StateActive, core.StateDawn:
		return st
	}
	return core.StateIdle
}

func parsePhase(s string) core.Phase {
	switch p := core.Phase(s); p {
	case core.PhaseWave, core.PhaseTrickle, core.PhaseBreak, core.PhaseComplete:
		return p
	}
	return core.PhaseComplete
}
