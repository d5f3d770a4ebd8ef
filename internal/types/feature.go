package types

// Props holds feature properties as stringified scalars. The router only
// ever needs presence checks and string-equality lookups (class/label/name
// fields), so a flat string map is sufficient and avoids threading a
// heterogeneous value type through every consumer.
type Props map[string]string

// Label returns the "label" property, falling back to "name".
func (p Props) Label() string {
	if v, ok := p["label"]; ok && v != "" {
		return v
	}
	return p["name"]
}

// Get returns a property value and whether it was present.
func (p Props) Get(key string) (string, bool) {
	v, ok := p[key]
	return v, ok
}

// LonLat is a WGS84 coordinate pair in degrees.
type LonLat struct {
	Lon float64
	Lat float64
}

// PointFeature is a single point geometry with properties.
type PointFeature struct {
	ID    string
	Lon   float64
	Lat   float64
	Props Props
}

// LineFeature is an ordered vertex sequence with at least two points.
type LineFeature struct {
	ID     string
	Coords []LonLat
	Props  Props
}

// PolygonFeature is a ring set: Rings[0] is the outer ring (closed, ≥4
// vertices), any remaining rings are holes.
type PolygonFeature struct {
	ID    string
	Rings [][]LonLat
	Props Props
}

// Outer returns the exterior ring, or nil if the polygon has none.
func (f PolygonFeature) Outer() []LonLat {
	if len(f.Rings) == 0 {
		return nil
	}
	return f.Rings[0]
}

// Holes returns the interior rings, if any.
func (f PolygonFeature) Holes() [][]LonLat {
	if len(f.Rings) < 2 {
		return nil
	}
	return f.Rings[1:]
}

// PolygonUnion is the result of unioning polygon features intersecting an
// AOI. It is represented as an unmerged set of (self-intersection repaired)
// polygons rather than a single boolean-merged geometry: every consumer in
// this system only needs point-in-union containment or line/union
// intersection, both of which give identical answers whether or not
// overlapping boundaries have actually been merged.
type PolygonUnion struct {
	Parts []PolygonFeature
}

// Empty reports whether the union contributes no geometry.
func (u PolygonUnion) Empty() bool { return len(u.Parts) == 0 }

// CloseRing appends the first vertex to the end of ring if it isn't already
// closed. Rings shorter than one vertex are returned unchanged.
func CloseRing(ring []LonLat) []LonLat {
	if len(ring) < 1 {
		return ring
	}
	first, last := ring[0], ring[len(ring)-1]
	if first.Lon == last.Lon && first.Lat == last.Lat {
		return ring
	}
	out := make([]LonLat, len(ring)+1)
	copy(out, ring)
	out[len(ring)] = first
	return out
}
