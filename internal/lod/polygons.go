package lod

import (
	"sort"

	"github.com/MeKo-Tech/mapagent/internal/geom"
	"github.com/MeKo-Tech/mapagent/internal/types"
)

// ApplyPolygons simplifies and, if necessary, hard-caps every polygon layer
// so their combined vertex count fits totalBudget, split evenly across
// layers.
func ApplyPolygons(layers []types.Layer, zoom float64, totalBudget int, keep HighlightSet) []types.Layer {
	if len(layers) == 0 {
		return layers
	}
	perLayer := totalBudget / len(layers)
	out := make([]types.Layer, len(layers))
	for i, l := range layers {
		out[i] = simplifyPolygonLayer(l, zoom, perLayer, keep[l.ID])
	}
	return out
}

func simplifyPolygonLayer(l types.Layer, zoom float64, budget int, keep map[string]struct{}) types.Layer {
	base := polyToleranceM(zoom)
	var simplified []types.PolygonFeature

	for _, tol := range toleranceLadder(base) {
		simplified = simplifyPolygons(l.Polygons, tol)
		if polyVertexTotal(simplified) <= budget {
			break
		}
	}

	if polyVertexTotal(simplified) > budget {
		items := make([]vcount, len(simplified))
		for i, f := range simplified {
			items[i] = vcount{id: f.ID, n: geom.VertexCountPolygon(f)}
		}
		dropped := dropToBudget(items, budget, keep)
		var kept []types.PolygonFeature
		for _, f := range simplified {
			if !dropped[f.ID] {
				kept = append(kept, f)
			}
		}
		simplified = kept
	}

	sort.Slice(simplified, func(i, j int) bool { return simplified[i].ID < simplified[j].ID })
	return types.Layer{ID: l.ID, Kind: l.Kind, Title: l.Title, Polygons: simplified, Style: l.Style}
}

// simplifyPolygons simplifies every polygon, dropping any whose outer ring
// collapses below 4 vertices rather than emitting it empty. A multi-part
// simplification result is not produced here (Douglas-Peucker never splits
// a ring); the {base_id}:{part_index} suffixing only occurs when a
// GeoParquet multi-geometry column is decoded (internal/engine/duckdb/geoparquet).
func simplifyPolygons(polys []types.PolygonFeature, toleranceM float64) []types.PolygonFeature {
	out := make([]types.PolygonFeature, 0, len(polys))
	for _, f := range polys {
		simplifiedFeature, ok := geom.SimplifyPolygon(f, toleranceM)
		if !ok {
			continue
		}
		out = append(out, simplifiedFeature)
	}
	return out
}

func polyVertexTotal(polys []types.PolygonFeature) int {
	n := 0
	for _, f := range polys {
		n += geom.VertexCountPolygon(f)
	}
	return n
}
