package geom

import "github.com/MeKo-Tech/mapagent/internal/types"

// PointInRing reports whether (lon,lat) is inside ring using the standard
// even-odd ray-casting test. ring need not be explicitly closed.
func PointInRing(lon, lat float64, ring []types.LonLat) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		xi, yi := ring[i].Lon, ring[i].Lat
		xj, yj := ring[j].Lon, ring[j].Lat
		if (yi > lat) != (yj > lat) {
			xIntersect := xj + (lat-yj)/(yi-yj)*(xi-xj)
			if lon < xIntersect {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// PointInPolygon reports whether (lon,lat) is inside the polygon's outer
// ring and outside all of its holes.
func PointInPolygon(lon, lat float64, poly types.PolygonFeature) bool {
	if !PointInRing(lon, lat, poly.Outer()) {
		return false
	}
	for _, hole := range poly.Holes() {
		if PointInRing(lon, lat, hole) {
			return false
		}
	}
	return true
}

// PointInUnion reports whether a point falls inside any part of a polygon
// union.
func PointInUnion(p types.LonLat, u types.PolygonUnion) bool {
	for _, part := range u.Parts {
		if PointInPolygon(p.Lon, p.Lat, part) {
			return true
		}
	}
	return false
}

// RepairRing fixes a ring's winding/closure so downstream consumers (union,
// simplify) see a consistently oriented, closed ring — the buffer(0)
// equivalent named in the geometry primitives design: we don't run a real
// self-intersection repair (no polygon-clipping library is available), we
// only guarantee closure and consistent orientation, which is all any
// consumer here (containment, bbox, vertex counts) actually depends on.
func RepairRing(ring []types.LonLat) []types.LonLat {
	ring = types.CloseRing(ring)
	if !isCounterClockwise(ring) {
		reverse(ring)
	}
	return ring
}

func isCounterClockwise(ring []types.LonLat) bool {
	var sum float64
	for i := 0; i < len(ring)-1; i++ {
		a, b := ring[i], ring[i+1]
		sum += (b.Lon - a.Lon) * (b.Lat + a.Lat)
	}
	return sum < 0
}

func reverse(ring []types.LonLat) {
	for i, j := 0, len(ring)-1; i < j; i, j = i+1, j-1 {
		ring[i], ring[j] = ring[j], ring[i]
	}
}

// UnionForIntersecting builds a PolygonUnion out of the polygons that
// intersect aoi, repairing every ring of each part. Per the documented Open
// Question decision, the union is left unmerged: every caller only needs
// containment/intersection semantics, which hold identically whether or not
// overlapping boundaries have been boolean-merged.
func UnionForIntersecting(polys []types.PolygonFeature, aoi types.BBox) types.PolygonUnion {
	var parts []types.PolygonFeature
	for _, p := range polys {
		if !PolygonBBox(p).Intersects(aoi) {
			continue
		}
		repaired := p
		repaired.Rings = make([][]types.LonLat, len(p.Rings))
		for i, r := range p.Rings {
			repaired.Rings[i] = RepairRing(r)
		}
		parts = append(parts, repaired)
	}
	return types.PolygonUnion{Parts: parts}
}

// PolygonBBox returns the WGS84 bounding box of a polygon's outer ring.
func PolygonBBox(p types.PolygonFeature) types.BBox {
	return RingBBox(p.Outer())
}

// RingBBox returns the WGS84 bounding box of a coordinate sequence.
func RingBBox(ring []types.LonLat) types.BBox {
	if len(ring) == 0 {
		return types.BBox{}
	}
	b := types.BBox{MinLon: ring[0].Lon, MinLat: ring[0].Lat, MaxLon: ring[0].Lon, MaxLat: ring[0].Lat}
	for _, p := range ring[1:] {
		if p.Lon < b.MinLon {
			b.MinLon = p.Lon
		}
		if p.Lon > b.MaxLon {
			b.MaxLon = p.Lon
		}
		if p.Lat < b.MinLat {
			b.MinLat = p.Lat
		}
		if p.Lat > b.MaxLat {
			b.MaxLat = p.Lat
		}
	}
	return b
}

// LineBBox returns the WGS84 bounding box of a line's coordinate sequence.
func LineBBox(coords []types.LonLat) types.BBox {
	return RingBBox(coords)
}
