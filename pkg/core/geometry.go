// pkg/core/geometry.go
package core

import (
	"fmt"
	"math"
)

// Vec2 is a position on the world's square grid. Y grows southwards.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns v+o.
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{X: v.X + o.X, Y: v.Y + o.Y} }

// Sub returns v-o.
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{X: v.X - o.X, Y: v.Y - o.Y} }

// Scale returns v*s.
func (v Vec2) Scale(s float64) Vec2 { return Vec2{X: v.X * s, Y: v.Y * s} }

// Len returns the euclidean length of v.
func (v Vec2) Len() float64 { return math.Hypot(v.X, v.Y) }

// Dist returns the euclidean distance between v and o.
func (v Vec2) Dist(o Vec2) float64 { return v.Sub(o).Len() }

// Perp returns v rotated by 90 degrees.
func (v Vec2) Perp() Vec2 { return Vec2{X: -v.Y, Y: v.X} }

// Direction is one of the eight compass bearings a siege can come from.
type Direction int

const (
	North Direction = iota
	NorthEast
	East
	SouthEast
	South
	SouthWest
	West
	NorthWest
)

// DirectionCount is the number of bearings.
const DirectionCount = 8

var directionNames = [DirectionCount]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// String returns the short compass name.
func (d Direction) String() string {
	if d < 0 || d >= DirectionCount {
		return "?"
	}
	return directionNames[d]
}

// ParseDirection maps a compass name back to a Direction.
func ParseDirection(s string) (Direction, bool) {
	for i, n := range directionNames {
		if n == s {
			return Direction(i), true
		}
	}
	return North, false
}

// Unit returns the unit vector pointing from an anchor towards the bearing.
func (d Direction) Unit() Vec2 {
	// North is up the screen, which is negative Y.
	angle := float64(d) * math.Pi / 4
	return Vec2{X: math.Sin(angle), Y: -math.Cos(angle)}
}

// CellSize is the edge length of a heat grid cell in world units.
const CellSize = 100

// CellKey addresses one heat grid cell.
type CellKey struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// CellOf returns the cell containing p.
func CellOf(p Vec2) CellKey {
	return CellKey{
		X: int(math.Floor(p.X / CellSize)),
		Y: int(math.Floor(p.Y / CellSize)),
	}
}

// Center returns the midpoint of the cell.
func (k CellKey) Center() Vec2 {
	return Vec2{
		X: (float64(k.X) + 0.5) * CellSize,
		Y: (float64(k.Y) + 0.5) * CellSize,
	}
}

func (k CellKey) String() string {
	return fmt.Sprintf("%d_%d", k.X, k.Y)
}
