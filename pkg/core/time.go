// pkg/core/time.go
package core

import "fmt"

// MinutesPerDay is the number of game minutes in one game day.
const MinutesPerDay = 24 * 60

// GameTime is the host's in-world clock.
type GameTime struct {
	Day    int
	Hour   int
	Minute int
}

// HourF returns the hour with minutes folded in as a fraction.
func (t GameTime) HourF() float64 {
	return float64(t.Hour) + float64(t.Minute)/60
}

// Minutes returns absolute game minutes since day zero.
func (t GameTime) Minutes() int {
	return t.Day*MinutesPerDay + t.Hour*60 + t.Minute
}

// AddMinutes returns t advanced by m game minutes.
func (t GameTime) AddMinutes(m int) GameTime {
	return TimeFromMinutes(t.Minutes() + m)
}

// TimeFromMinutes is the inverse of GameTime.Minutes.
func TimeFromMinutes(total int) GameTime {
	return GameTime{
		Day:    total / MinutesPerDay,
		Hour:   (total % MinutesPerDay) / 60,
		Minute: total % 60,
	}
}

func (t GameTime) String() string {
	return fmt.Sprintf("day %d %02d:%02d", t.Day, t.Hour, t.Minute)
}
