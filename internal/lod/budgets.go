// Package lod reduces an AOI-sliced LayerBundle to a rendering budget:
// zoom-aware line/polygon simplification, grid clustering of dense point
// layers, deterministic hard-capping, and highlight preservation.
package lod

// Budgets bounds the rendered size of a LOD'd bundle. The precise numbers
// are empirically tuned per the source design notes; they're exposed as
// config rather than baked-in constants so an operator can recalibrate per
// target hardware.
type Budgets struct {
	MaxPointsRendered    int // primary point layer cap/cluster threshold
	MaxAuxPointsRendered int // non-primary point layers: cap only, never cluster
	MaxLineVertices      int // shared across all line layers
	MaxPolyVertices      int // shared across all polygon layers
}

// DefaultBudgets are the budgets the orchestrator applies on every LOD pass.
var DefaultBudgets = Budgets{
	MaxPointsRendered:    2500,
	MaxAuxPointsRendered: 500,
	MaxLineVertices:      40000,
	MaxPolyVertices:      80000,
}

// HighlightBudgets are the independent, looser caps applied when building
// highlight overlay traces from the pre-LOD bundle (§4.5 preservation
// contract) — overlays must render identically regardless of what the base
// layers dropped.
var HighlightBudgets = Budgets{
	MaxPointsRendered: 5000,
	MaxLineVertices:   60000,
	MaxPolyVertices:   80000,
}

// HighlightSet maps layer id to the set of feature ids that must survive LOD
// capping on that layer.
type HighlightSet map[string]map[string]struct{}

// Keeps reports whether id on layerID is protected from capping.
func (h HighlightSet) Keeps(layerID, id string) bool {
	if h == nil {
		return false
	}
	set, ok := h[layerID]
	if !ok {
		return false
	}
	_, ok = set[id]
	return ok
}
