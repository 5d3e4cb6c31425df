package geo

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hordenight/siege/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// ErrNotAreal is returned when a zone is not a polygon or multipolygon
var ErrNotAreal = errors.New("zone geometry must be a polygon or multipolygon")

// Vec2FromString parses a string in the format "x,y" into a core.Vec2.
// A trailing elevation component is accepted and ignored.
func Vec2FromString(coords string) (core.Vec2, error) {
	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) < 2 {
		return core.Vec2{}, ErrInvalidCoordinates
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[0]), 64)
	if err != nil {
		return core.Vec2{}, ErrInvalidCoordinates
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[1]), 64)
	if err != nil {
		return core.Vec2{}, ErrInvalidCoordinates
	}
	return core.Vec2{X: x, Y: y}, nil
}

// PointFromVec2 builds a geom.Point from world coordinates. Non-finite
// coordinates are rejected.
func PointFromVec2(v core.Vec2) (geom.Point, error) {
	pt, err := geom.XY{X: v.X, Y: v.Y}.AsPoint()
	if err != nil {
		return geom.Point{}, fmt.Errorf("%w: %v", ErrInvalidCoordinates, err)
	}
	return pt, nil
}

// ZoneSet is a set of restricted areas no siege spawn may land in.
// Zones are world-coordinate polygons given as WKT.
type ZoneSet struct {
	zones []geom.Geometry
}

// ParseZones parses WKT polygons. Blank entries are skipped.
func ParseZones(wkts []string) (*ZoneSet, error) {
	zs := &ZoneSet{}
	for i, wkt := range wkts {
		if strings.TrimSpace(wkt) == "" {
			continue
		}
		g, err := geom.UnmarshalWKT(wkt)
		if err != nil {
			return nil, fmt.Errorf("zone %d: %w", i, err)
		}
		if !g.IsPolygon() && !g.IsMultiPolygon() {
			return nil, fmt.Errorf("zone %d: %w", i, ErrNotAreal)
		}
		zs.zones = append(zs.zones, g)
	}
	return zs, nil
}

// Len returns the number of zones.
func (z *ZoneSet) Len() int {
	if z == nil {
		return 0
	}
	return len(z.zones)
}

// Contains reports whether p lies inside or on the edge of any zone. A
// position that is not a valid point is treated as restricted.
func (z *ZoneSet) Contains(p core.Vec2) bool {
	if z.Len() == 0 {
		return false
	}
	point, err := PointFromVec2(p)
	if err != nil {
		return true
	}
	pt := point.AsGeometry()
	for _, g := range z.zones {
		if geom.Intersects(g, pt) {
			return true
		}
	}
	return false
}
