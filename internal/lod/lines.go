package lod

import (
	"sort"

	"github.com/MeKo-Tech/mapagent/internal/geom"
	"github.com/MeKo-Tech/mapagent/internal/types"
)

// ApplyLines simplifies and, if necessary, hard-caps every line layer so
// their combined vertex count fits totalBudget, split evenly across layers.
func ApplyLines(layers []types.Layer, zoom float64, totalBudget int, keep HighlightSet) []types.Layer {
	if len(layers) == 0 {
		return layers
	}
	perLayer := totalBudget / len(layers)
	out := make([]types.Layer, len(layers))
	for i, l := range layers {
		out[i] = simplifyLineLayer(l, zoom, perLayer, keep[l.ID])
	}
	return out
}

func simplifyLineLayer(l types.Layer, zoom float64, budget int, keep map[string]struct{}) types.Layer {
	base := lineToleranceM(zoom)
	var simplified []types.LineFeature

	for _, tol := range toleranceLadder(base) {
		simplified = simplifyLines(l.Lines, tol)
		if lineVertexTotal(simplified) <= budget {
			break
		}
	}

	if lineVertexTotal(simplified) > budget {
		items := make([]vcount, len(simplified))
		for i, f := range simplified {
			items[i] = vcount{id: f.ID, n: len(f.Coords)}
		}
		dropped := dropToBudget(items, budget, keep)
		var kept []types.LineFeature
		for _, f := range simplified {
			if !dropped[f.ID] {
				kept = append(kept, f)
			}
		}
		simplified = kept
	}

	sort.Slice(simplified, func(i, j int) bool { return simplified[i].ID < simplified[j].ID })
	return types.Layer{ID: l.ID, Kind: l.Kind, Title: l.Title, Lines: simplified, Style: l.Style}
}

func simplifyLines(lines []types.LineFeature, toleranceM float64) []types.LineFeature {
	out := make([]types.LineFeature, 0, len(lines))
	for _, f := range lines {
		coords := geom.SimplifyLine(f.Coords, toleranceM)
		if len(coords) < 2 {
			continue
		}
		out = append(out, types.LineFeature{ID: f.ID, Coords: coords, Props: f.Props})
	}
	return out
}

func lineVertexTotal(lines []types.LineFeature) int {
	n := 0
	for _, f := range lines {
		n += len(f.Coords)
	}
	return n
}
