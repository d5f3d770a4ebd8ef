package lod

import (
	"math"
	"sort"

	"github.com/MeKo-Tech/mapagent/internal/geom"
	"github.com/MeKo-Tech/mapagent/internal/types"
)

// ClusterMarker is a synthetic point representing a non-empty grid cell: its
// centroid and the number of features it collapsed.
type ClusterMarker struct {
	Lon   float64
	Lat   float64
	Count int
}

// PointsResult is the outcome of applying LOD to one point layer: the
// (possibly capped, never simplified) raw features, and — for the primary
// layer only — an optional parallel cluster list.
type PointsResult struct {
	Layer    types.Layer
	Clusters []ClusterMarker
}

// shouldCluster decides whether a point layer should be rendered as cluster
// markers rather than raw points.
func shouldCluster(zoom float64, n, maxPoints int) bool {
	return zoom <= 9.5 || n > maxPoints
}

// ApplyPrimaryPoints applies clustering or capping to the designated primary
// point layer. The raw, uncapped features are kept in the returned layer for
// highlight lookup even when clusters are produced.
func ApplyPrimaryPoints(l types.Layer, zoom float64, maxPoints int, keep map[string]struct{}) PointsResult {
	n := len(l.Points)
	if !shouldCluster(zoom, n, maxPoints) {
		capped := capPoints(l.Points, maxPoints, keep)
		return PointsResult{Layer: types.Layer{ID: l.ID, Kind: l.Kind, Title: l.Title, Points: capped, Style: l.Style}}
	}

	clusters := clusterPoints(l.Points, zoom)
	return PointsResult{
		Layer:    l,
		Clusters: clusters,
	}
}

// ApplyAuxiliaryPoints caps (never clusters) a non-primary point layer.
func ApplyAuxiliaryPoints(l types.Layer, maxPoints int, keep map[string]struct{}) types.Layer {
	capped := capPoints(l.Points, maxPoints, keep)
	return types.Layer{ID: l.ID, Kind: l.Kind, Title: l.Title, Points: capped, Style: l.Style}
}

// capPoints keeps every highlighted feature, then fills the remaining budget
// with the lowest-id features, always returning a result sorted by id.
func capPoints(points []types.PointFeature, max int, keep map[string]struct{}) []types.PointFeature {
	if len(points) <= max {
		sorted := append([]types.PointFeature{}, points...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
		return sorted
	}

	var kept, rest []types.PointFeature
	for _, p := range points {
		if _, ok := keep[p.ID]; ok {
			kept = append(kept, p)
		} else {
			rest = append(rest, p)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].ID < rest[j].ID })

	budget := max - len(kept)
	if budget < 0 {
		budget = 0
	}
	if budget > len(rest) {
		budget = len(rest)
	}
	out := append(kept, rest[:budget]...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type cell struct{ x, y int64 }

func clusterPoints(points []types.PointFeature, zoom float64) []ClusterMarker {
	grid := gridSizeM(zoom)
	buckets := make(map[cell][]types.PointFeature)

	for _, p := range points {
		merc := geom.ToMercator(types.LonLat{Lon: p.Lon, Lat: p.Lat})
		c := cell{x: int64(math.Floor(merc[0] / grid)), y: int64(math.Floor(merc[1] / grid))}
		buckets[c] = append(buckets[c], p)
	}

	markers := make([]ClusterMarker, 0, len(buckets))
	cells := make([]cell, 0, len(buckets))
	for c := range buckets {
		cells = append(cells, c)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].x != cells[j].x {
			return cells[i].x < cells[j].x
		}
		return cells[i].y < cells[j].y
	})

	for _, c := range cells {
		members := buckets[c]
		var sumLon, sumLat float64
		for _, p := range members {
			sumLon += p.Lon
			sumLat += p.Lat
		}
		markers = append(markers, ClusterMarker{
			Lon:   sumLon / float64(len(members)),
			Lat:   sumLat / float64(len(members)),
			Count: len(members),
		})
	}

	sort.SliceStable(markers, func(i, j int) bool { return markers[i].Count > markers[j].Count })
	return markers
}
