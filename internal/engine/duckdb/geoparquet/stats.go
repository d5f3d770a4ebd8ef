package geoparquet

import "github.com/MeKo-Tech/mapagent/internal/types"

// BaseStats assembles a per-layer telemetry record; pass zero durations
// when the layer was skipped entirely.
func BaseStats(layerID, kind string, viewZoom float64, n int, duckdbMs, decodeMs, totalMs float64, cappedBy []string, safetyCap, policyCap, hardCap, effectiveCap int, skippedReason string, geomMinZoom float64) types.LayerStats {
	return types.LayerStats{
		LayerID:        layerID,
		Kind:           kindOf(kind),
		Source:         "geoparquet",
		Zoom:           viewZoom,
		N:              n,
		DuckDBMs:       duckdbMs,
		DecodeMs:       decodeMs,
		TotalMs:        totalMs,
		SafetyCap:      safetyCap,
		PolicyCap:      policyCap,
		HardCap:        hardCap,
		EffectiveCap:   effectiveCap,
		CappedBy:       cappedBy,
		SkippedReason:  skippedReason,
		GeomMinZoom:    geomMinZoom,
	}
}
