package types

import "sort"

// Highlight is a rendering overlay pinned to a specific layer and set of
// feature ids, rendered on top of the LOD'd base layers.
type Highlight struct {
	LayerID    string
	FeatureIDs map[string]struct{}
	Title      string
	Mode       string // e.g. "prompt", "recommend", "escape"
}

// NewHighlight builds a Highlight from a slice of ids.
func NewHighlight(layerID string, ids []string, title, mode string) Highlight {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return Highlight{LayerID: layerID, FeatureIDs: set, Title: title, Mode: mode}
}

// IsEmpty reports whether the highlight carries no feature ids, i.e. is a
// no-op per the data-model invariant.
func (h Highlight) IsEmpty() bool {
	return len(h.FeatureIDs) == 0
}

// Contains reports whether id is in the highlight's feature set.
func (h Highlight) Contains(id string) bool {
	_, ok := h.FeatureIDs[id]
	return ok
}

// SortedIDs returns the highlight's feature ids in ascending order.
func (h Highlight) SortedIDs() []string {
	out := make([]string, 0, len(h.FeatureIDs))
	for id := range h.FeatureIDs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
