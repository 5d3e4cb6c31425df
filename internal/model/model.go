package model

import (
	"github.com/hordenight/siege/pkg/core"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&SiegeRecord{},
}

// SiegeRecord is one world's persisted siege document.
// WorldKey is the persistent-world key the host hands out.
type SiegeRecord struct {
	gorm.Model
	WorldKey              string `json:"worldKey" gorm:"size:127;uniqueIndex"`
	State                 string `json:"state" gorm:"size:16"`
	SiegeCount            int    `json:"siegeCount"`
	NextSiegeDay          int    `json:"nextSiegeDay"`
	LastDirection         int    `json:"lastDirection"`
	SpawnedThisSiege      int    `json:"spawnedThisSiege"`
	TargetZombies         int    `json:"targetZombies"`
	KillsThisSiege        int    `json:"killsThisSiege"`
	BonusKills            int    `json:"bonusKills"`
	SpecialKillsThisSiege int    `json:"specialKillsThisSiege"`
	TanksSpawned          int    `json:"tanksSpawned"`
	CurrentWaveIndex      int    `json:"currentWaveIndex"`
	CurrentPhase          string `json:"currentPhase" gorm:"size:16"`
	TotalSiegesCompleted  int    `json:"totalSiegesCompleted"`
	TotalKillsAllTime     int    `json:"totalKillsAllTime"`

	History datatypes.JSONSlice[core.HistoryEntry] `json:"history"`
}

func (*SiegeRecord) TableName() string {
	return "siege_records"
}
