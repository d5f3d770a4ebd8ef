package geoparquet

import (
	"fmt"
	"sort"

	"github.com/MeKo-Tech/mapagent/internal/scenario"
)

// ChooseByMaxZoom picks the value of the smallest maxZoom key that is >=
// zoom from a {maxZoom: value} map, or the largest-keyed value if zoom
// exceeds every key. Returns fallback if mapping is empty.
func ChooseByMaxZoom(mapping map[string]int, zoom float64, fallback int) int {
	if len(mapping) == 0 {
		return fallback
	}
	type kv struct {
		z float64
		v int
	}
	items := make([]kv, 0, len(mapping))
	for k, v := range mapping {
		var z float64
		if _, err := fmt.Sscanf(k, "%g", &z); err != nil {
			continue
		}
		items = append(items, kv{z, v})
	}
	if len(items) == 0 {
		return fallback
	}
	sort.Slice(items, func(i, j int) bool { return items[i].z < items[j].z })
	for _, it := range items {
		if zoom <= it.z {
			return it.v
		}
	}
	return items[len(items)-1].v
}

// AllowedClasses returns the fclass values unlocked at the given zoom per
// the policy's minZoomForGeometryByClass map, or nil if unset.
func AllowedClasses(policy *scenario.RenderPolicy, zoom float64) map[string]bool {
	if policy == nil || len(policy.MinZoomForGeometryByClass) == 0 {
		return nil
	}
	allowed := make(map[string]bool)
	for class, minZ := range policy.MinZoomForGeometryByClass {
		if zoom >= minZ {
			allowed[class] = true
		}
	}
	if len(allowed) == 0 {
		return nil
	}
	return allowed
}

// OrderBySQL returns the candidate-ranking ORDER BY expression: the
// policy's explicit orderBy if set, else bbox-diagonal-squared descending
// as a cheap importance proxy that avoids decoding geometry up front.
func OrderBySQL(policy *scenario.RenderPolicy, b BBoxExprs) string {
	if policy != nil && policy.OrderBy != "" {
		return policy.OrderBy
	}
	dx := fmt.Sprintf("CAST(%s AS DOUBLE) - CAST(%s AS DOUBLE)", b.XMax, b.XMin)
	dy := fmt.Sprintf("CAST(%s AS DOUBLE) - CAST(%s AS DOUBLE)", b.YMax, b.YMin)
	return fmt.Sprintf("(%s*%s + %s*%s) DESC", dx, dx, dy, dy)
}

// MaxCandidates resolves the policy's maxCandidatesByZoom at the given
// zoom, or nil if the policy sets none.
func MaxCandidates(policy *scenario.RenderPolicy, zoom float64) *int {
	if policy == nil || len(policy.MaxCandidatesByZoom) == 0 {
		return nil
	}
	v := ChooseByMaxZoom(policy.MaxCandidatesByZoom, zoom, -1)
	if v < 0 {
		return nil
	}
	return &v
}
