package lod

import (
	"sort"

	"github.com/MeKo-Tech/mapagent/internal/types"
)

// HighlightResult is a highlight overlay built from the pre-LOD bundle,
// capped independently by HighlightBudgets, with requested/rendered counts
// for the orchestrator's "matched N, rendering M" reporting.
type HighlightResult struct {
	Highlight types.Highlight
	Requested int
	Points    []types.PointFeature
	Lines     []types.LineFeature
	Polygons  []types.PolygonFeature
}

// Rendered returns the total feature count actually kept in the overlay.
func (r HighlightResult) Rendered() int {
	return len(r.Points) + len(r.Lines) + len(r.Polygons)
}

// BuildHighlight selects h's feature ids out of the pre-LOD bundle and caps
// them to the independent highlight overlay budget, never the base-layer
// budget — this is what lets an overlay survive even when the base layer
// dropped the same features.
func BuildHighlight(preLOD types.LayerBundle, h types.Highlight) HighlightResult {
	result := HighlightResult{Highlight: h, Requested: len(h.FeatureIDs)}
	if h.IsEmpty() {
		return result
	}

	layer, ok := preLOD.Get(h.LayerID)
	if !ok {
		return result
	}

	switch layer.Kind {
	case types.KindPoints:
		var matched []types.PointFeature
		for _, f := range layer.Points {
			if h.Contains(f.ID) {
				matched = append(matched, f)
			}
		}
		ids := make([]string, len(matched))
		for i, f := range matched {
			ids[i] = f.ID
		}
		sort.Strings(ids)
		if len(ids) > HighlightBudgets.MaxPointsRendered {
			ids = ids[:HighlightBudgets.MaxPointsRendered]
		}
		keepSet := toSet(ids)
		for _, f := range matched {
			if keepSet[f.ID] {
				result.Points = append(result.Points, f)
			}
		}
		sort.Slice(result.Points, func(i, j int) bool { return result.Points[i].ID < result.Points[j].ID })

	case types.KindLines:
		var matched []types.LineFeature
		for _, f := range layer.Lines {
			if h.Contains(f.ID) {
				matched = append(matched, f)
			}
		}
		items := make([]vcount, len(matched))
		for i, f := range matched {
			items[i] = vcount{id: f.ID, n: len(f.Coords)}
		}
		dropped := dropToBudget(items, HighlightBudgets.MaxLineVertices, nil)
		for _, f := range matched {
			if !dropped[f.ID] {
				result.Lines = append(result.Lines, f)
			}
		}
		sort.Slice(result.Lines, func(i, j int) bool { return result.Lines[i].ID < result.Lines[j].ID })

	case types.KindPolygons:
		var matched []types.PolygonFeature
		for _, f := range layer.Polygons {
			if h.Contains(f.ID) {
				matched = append(matched, f)
			}
		}
		items := make([]vcount, len(matched))
		for i, f := range matched {
			n := 0
			for _, r := range f.Rings {
				n += len(r)
			}
			items[i] = vcount{id: f.ID, n: n}
		}
		dropped := dropToBudget(items, HighlightBudgets.MaxPolyVertices, nil)
		for _, f := range matched {
			if !dropped[f.ID] {
				result.Polygons = append(result.Polygons, f)
			}
		}
		sort.Slice(result.Polygons, func(i, j int) bool { return result.Polygons[i].ID < result.Polygons[j].ID })
	}

	return result
}

func toSet(ids []string) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}
