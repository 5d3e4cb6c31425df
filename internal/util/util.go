// Package util provides small numeric, clock and argument helpers shared by
// the director.
package util

import (
	"cmp"
	"math"
	"strings"
)

// CleanArg strips surrounding quotes and whitespace from a host-supplied
// argument and collapses escaped double quotes.
func CleanArg(s string) string {
	return strings.ReplaceAll(strings.Trim(strings.TrimSpace(s), `"`), `""`, `"`)
}

// Clamp bounds v to [lo, hi].
func Clamp[T cmp.Ordered](v, lo, hi T) T {
	return max(lo, min(hi, v))
}

// InHourWindow reports whether hour h lies in [from, to), wrapping past
// midnight when from > to. An empty window (from == to) contains nothing.
func InHourWindow(h, from, to float64) bool {
	if from == to {
		return false
	}
	if from < to {
		return h >= from && h < to
	}
	return h >= from || h < to
}

// HoursSince returns the forward distance in hours from `from` to h on a
// 24h clock.
func HoursSince(h, from float64) float64 {
	d := math.Mod(h-from, 24)
	if d < 0 {
		d += 24
	}
	return d
}

// WindowLength returns the length in hours of the window [from, to) on a
// 24h clock.
func WindowLength(from, to float64) float64 {
	return HoursSince(to, from)
}
