// Package geom adapts the flat WGS84 feature types in internal/types into
// github.com/paulmach/orb geometries for projection, simplification, and
// nearest-neighbor queries, and back again.
package geom

import (
	"math"

	"github.com/MeKo-Tech/mapagent/internal/types"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// MaxMercatorLat is the Web Mercator latitude clamp (beyond this the
// projection diverges).
const MaxMercatorLat = 85.05112878

// ToPoint converts a LonLat into an orb.Point (lon, lat order, matching orb's
// convention).
func ToPoint(p types.LonLat) orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// FromPoint converts an orb.Point back into a LonLat.
func FromPoint(p orb.Point) types.LonLat {
	return types.LonLat{Lon: p[0], Lat: p[1]}
}

// ToMercator projects a WGS84 point into Web Mercator meters.
func ToMercator(p types.LonLat) orb.Point {
	lat := p.Lat
	if lat > MaxMercatorLat {
		lat = MaxMercatorLat
	}
	if lat < -MaxMercatorLat {
		lat = -MaxMercatorLat
	}
	return project.WGS84.ToMercator(orb.Point{p.Lon, lat})
}

// FromMercator projects a Web Mercator point back to WGS84.
func FromMercator(p orb.Point) types.LonLat {
	wgs := project.Mercator.ToWGS84(p)
	return types.LonLat{Lon: wgs[0], Lat: wgs[1]}
}

// LineStringMercator projects an entire coordinate sequence into meters.
func LineStringMercator(coords []types.LonLat) orb.LineString {
	ls := make(orb.LineString, len(coords))
	for i, c := range coords {
		ls[i] = ToMercator(c)
	}
	return ls
}

// LineStringFromMercator projects an orb.LineString back to WGS84 LonLat.
func LineStringFromMercator(ls orb.LineString) []types.LonLat {
	out := make([]types.LonLat, len(ls))
	for i, p := range ls {
		out[i] = FromMercator(p)
	}
	return out
}

// DistanceMercator returns the Euclidean distance between two Web Mercator
// points, in meters.
func DistanceMercator(a, b orb.Point) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	return math.Sqrt(dx*dx + dy*dy)
}
