package spawn

import "github.com/hordenight/siege/internal/config"

// Settings are the spawn engine tunables, read fresh from the provider so
// config reloads apply to the running siege.
type Settings struct {
	DuskHour             float64
	DawnHour             float64
	SpawnDistance        float64
	HealthMultiplier     float64
	TankHealthMultiplier float64
	VisibilityRadius     float64
	WaveIntervalTicks    int
	WaveBatchSize        int
	TrickleIntervalTicks int
	AttractRadius        float64
	Outfits              []string
	Specials             RollerSettings
}

// LoadSettings reads the spawn engine settings from p.
func LoadSettings(p *config.Provider) Settings {
	return Settings{
		DuskHour:             p.Float("siege.duskHour"),
		DawnHour:             p.Float("siege.dawnHour"),
		SpawnDistance:        p.Float("siege.spawnDistance"),
		HealthMultiplier:     p.Float("siege.healthMultiplier"),
		TankHealthMultiplier: p.Float("siege.tankHealthMultiplier"),
		VisibilityRadius:     p.Float("siege.visibilityRadius"),
		WaveIntervalTicks:    max(1, p.Int("siege.waveIntervalTicks")),
		WaveBatchSize:        max(1, p.Int("siege.waveBatchSize")),
		TrickleIntervalTicks: max(1, p.Int("siege.trickleIntervalTicks")),
		AttractRadius:        p.Float("siege.attractRadius"),
		Outfits:              p.Strings("siege.outfits"),
		Specials: RollerSettings{
			Enabled:         p.Bool("specials.enabled"),
			StartSiege:      p.Int("specials.startSiege"),
			HoursAfterDusk:  p.Float("specials.hoursAfterDusk"),
			SprinterPercent: p.Int("specials.sprinterPercent"),
			BreakerPercent:  p.Int("specials.breakerPercent"),
			MaxTanks:        p.Int("specials.maxTanks"),
		},
	}
}
