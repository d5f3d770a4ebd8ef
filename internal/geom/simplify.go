package geom

import (
	"github.com/MeKo-Tech/mapagent/internal/types"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"
)

// SimplifyLine reduces coords to within toleranceM (meters) using
// Douglas-Peucker in the Web Mercator CRS, then projects back to WGS84. The
// first and last vertex are always preserved.
func SimplifyLine(coords []types.LonLat, toleranceM float64) []types.LonLat {
	if len(coords) < 3 || toleranceM <= 0 {
		return coords
	}
	merc := LineStringMercator(coords)
	reduced := simplify.DouglasPeucker(toleranceM).Simplify(orb.Geometry(merc))
	ls, ok := reduced.(orb.LineString)
	if !ok || len(ls) < 2 {
		return coords
	}
	return LineStringFromMercator(ls)
}

// SimplifyRing reduces a closed ring to within toleranceM meters, preserving
// closure. Returns nil if simplification collapses the ring below 4 vertices
// (3 distinct + closing point) — callers must drop the feature rather than
// emit a degenerate polygon.
func SimplifyRing(ring []types.LonLat, toleranceM float64) []types.LonLat {
	simplified := SimplifyLine(ring, toleranceM)
	simplified = types.CloseRing(simplified)
	if len(simplified) < 4 {
		return nil
	}
	return simplified
}

// SimplifyPolygon simplifies every ring of a polygon. Returns ok=false if the
// outer ring collapses (the feature must be dropped, never emitted empty).
func SimplifyPolygon(p types.PolygonFeature, toleranceM float64) (types.PolygonFeature, bool) {
	if len(p.Rings) == 0 {
		return p, false
	}
	outer := SimplifyRing(p.Rings[0], toleranceM)
	if outer == nil {
		return p, false
	}
	out := p
	out.Rings = make([][]types.LonLat, 0, len(p.Rings))
	out.Rings = append(out.Rings, outer)
	for _, hole := range p.Rings[1:] {
		sh := SimplifyRing(hole, toleranceM)
		if sh == nil {
			continue
		}
		out.Rings = append(out.Rings, sh)
	}
	return out, true
}

// VertexCountLine returns len(coords).
func VertexCountLine(f types.LineFeature) int { return len(f.Coords) }

// VertexCountPolygon sums vertex counts across all of a polygon's rings.
func VertexCountPolygon(f types.PolygonFeature) int {
	n := 0
	for _, r := range f.Rings {
		n += len(r)
	}
	return n
}
