package spawn

import (
	"math/rand/v2"

	"github.com/hordenight/siege/pkg/core"
)

const (
	tankNightProgress = 0.65
	tankMaxChance     = 0.15
	tankChancePerHour = 0.30
	minRemainingHours = 0.25
)

// RollerSettings are the special-unit tunables.
type RollerSettings struct {
	Enabled         bool
	StartSiege      int
	HoursAfterDusk  float64
	SprinterPercent int
	BreakerPercent  int
	MaxTanks        int
}

// RollState is the siege progress a roll depends on.
type RollState struct {
	SiegeCount     int
	HoursSinceDusk float64
	NightLength    float64
	TanksSpawned   int
}

// Roller decides the variant of each spawn.
type Roller struct {
	rng *rand.Rand
}

func NewRoller(rng *rand.Rand) *Roller {
	return &Roller{rng: rng}
}

// Roll returns the variant for one spawn. Tanks are checked first and take
// priority; otherwise a 0-99 roll selects sprinter, breaker or normal.
func (r *Roller) Roll(s RollerSettings, st RollState) core.Variant {
	if !s.Enabled || st.SiegeCount < s.StartSiege || st.HoursSinceDusk < s.HoursAfterDusk {
		return core.VariantNormal
	}

	if r.rollTank(s, st) {
		return core.VariantTank
	}

	roll := r.rng.IntN(100)
	switch {
	case roll < s.SprinterPercent:
		return core.VariantSprinter
	case roll < s.SprinterPercent+s.BreakerPercent:
		return core.VariantBreaker
	default:
		return core.VariantNormal
	}
}

// TankChance returns the probability a spawn becomes a tank, or 0 when not
// eligible.
func TankChance(s RollerSettings, st RollState) float64 {
	remainingTanks := s.MaxTanks - st.TanksSpawned
	if remainingTanks <= 0 || st.NightLength <= 0 {
		return 0
	}
	if st.HoursSinceDusk/st.NightLength < tankNightProgress {
		return 0
	}
	remainingHours := max(minRemainingHours, st.NightLength-st.HoursSinceDusk)
	return min(tankMaxChance, float64(remainingTanks)/remainingHours*tankChancePerHour)
}

func (r *Roller) rollTank(s RollerSettings, st RollState) bool {
	p := TankChance(s, st)
	return p > 0 && r.rng.Float64() < p
}
