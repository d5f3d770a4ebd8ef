package geoindex

import (
	"math"

	"github.com/MeKo-Tech/mapagent/internal/geom"
	"github.com/MeKo-Tech/mapagent/internal/types"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/quadtree"
)

// pointQuadtree is a projected (Web Mercator, meters) nearest-neighbor index
// over a single point layer, used for distance_to_nearest_point_m and the
// router's proximity scoring.
type pointQuadtree struct {
	qt *quadtree.Quadtree
}

func newPointQuadtree(points []types.PointFeature) *pointQuadtree {
	if len(points) == 0 {
		return &pointQuadtree{}
	}

	merc := make([]orb.Point, len(points))
	bound := orb.Bound{Min: orb.Point{math.MaxFloat64, math.MaxFloat64}, Max: orb.Point{-math.MaxFloat64, -math.MaxFloat64}}
	for i, p := range points {
		merc[i] = geom.ToMercator(types.LonLat{Lon: p.Lon, Lat: p.Lat})
		bound = bound.Extend(merc[i])
	}

	qt := quadtree.New(bound)
	for i, p := range merc {
		_ = qt.Add(mercPoint{p, i})
	}
	return &pointQuadtree{qt: qt}
}

type mercPoint struct {
	p   orb.Point
	idx int
}

func (m mercPoint) Point() orb.Point { return m.p }

// Nearest returns the distance in meters from (lon,lat) to the closest
// indexed point, or +Inf if the layer is empty.
func (q *pointQuadtree) Nearest(lon, lat float64) float64 {
	if q == nil || q.qt == nil {
		return math.Inf(1)
	}
	query := geom.ToMercator(types.LonLat{Lon: lon, Lat: lat})
	found := q.qt.Find(query)
	if found == nil {
		return math.Inf(1)
	}
	return geom.DistanceMercator(query, found.Point())
}
