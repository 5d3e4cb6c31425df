// Package wave splits a siege's enemy budget into escalating waves.
package wave

import (
	"math"

	"github.com/hordenight/siege/internal/util"
)

const (
	minWaves          = 3
	maxWaves          = 7
	zombiesPerWave    = 60
	minWaveSize       = 10
	burstShare        = 0.7
	minBurst          = 5
	minTrickle        = 2
	breakTicksPerUnit = 36
	minBaseBreak      = 5400
	maxBreak          = 18000
	minBreak          = 3600
	maxBreakDecay     = 0.6
)

// Definition is one planned wave. Size() units spawn in total: a burst of
// WaveSize followed by a trickle of TrickleSize.
type Definition struct {
	WaveSize    int `json:"waveSize"`
	TrickleSize int `json:"trickleSize"`
	BreakTicks  int `json:"breakTicks"`
}

// Size returns the number of units this wave spawns.
func (d Definition) Size() int {
	return d.WaveSize + d.TrickleSize
}

// Count returns the number of waves planned for total.
func Count(total int) int {
	return util.Clamp(total/zombiesPerWave+2, minWaves, maxWaves)
}

// Plan maps a total enemy count to an ordered list of waves whose sizes sum
// exactly to total. Later waves are larger and their breaks shorter; the
// last wave has no break.
func Plan(total int) []Definition {
	if total <= 0 {
		return nil
	}
	n := Count(total)

	weightSum := 0
	for i := 1; i <= n; i++ {
		weightSum += n + i
	}

	baseBreak := util.Clamp(total*breakTicksPerUnit, minBaseBreak, maxBreak)

	waves := make([]Definition, n)
	remaining := total
	for i := 1; i <= n; i++ {
		var size int
		if i == n {
			size = remaining
		} else {
			share := floor(float64(total) * float64(n+i) / float64(weightSum))
			size = min(max(minWaveSize, share), remaining)
		}
		remaining -= size

		d := split(size)
		if i < n {
			decay := 1 - maxBreakDecay*float64(i-1)/float64(n-1)
			d.BreakTicks = util.Clamp(floor(float64(baseBreak)*decay), minBreak, maxBreak)
		}
		waves[i-1] = d
	}
	return waves
}

// Total returns the number of units the plan spawns.
func Total(plan []Definition) int {
	sum := 0
	for _, d := range plan {
		sum += d.Size()
	}
	return sum
}

func split(size int) Definition {
	burst := max(minBurst, floor(float64(size)*burstShare))
	trickle := min(size, max(minTrickle, size-burst))
	return Definition{WaveSize: size - trickle, TrickleSize: trickle}
}

// floor truncates x, absorbing representation error so 5400*0.7 is 3780.
func floor(x float64) int {
	return int(math.Floor(x + 1e-9))
}
