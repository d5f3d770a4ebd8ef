package geoparquet

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/MeKo-Tech/mapagent/internal/scenario"
	"github.com/MeKo-Tech/mapagent/internal/types"
)

type bundleKey struct {
	scenarioID string
	aoi        [4]float64
	zoomBucket int
}

type bundleEntry struct {
	bundle types.LayerBundle
	stats  []types.LayerStats
}

const bundleCacheSize = 128

// BundleCache memoizes full-scenario GeoParquet queries by (scenario,
// rounded AOI, zoom bucket), holding at most bundleCacheSize entries and
// evicting the oldest insertion first.
type BundleCache struct {
	mu    sync.Mutex
	cache map[bundleKey]bundleEntry
	order []bundleKey
}

func NewBundleCache() *BundleCache {
	return &BundleCache{cache: make(map[bundleKey]bundleEntry)}
}

// QueryScenarioLayers queries every geoparquet-sourced layer of cfg for aoi
// at viewZoom, using db as the DuckDB connection. Non-geoparquet layers are
// returned empty, and nothing merges their source data into the bundle.
func (bc *BundleCache) QueryScenarioLayers(ctx context.Context, db *sql.DB, cfg scenario.Config, aoi types.BBox, viewZoom float64) (types.LayerBundle, []types.LayerStats, error) {
	decimals := AOICacheDecimals()
	key := bundleKey{
		scenarioID: cfg.ID,
		aoi:        aoi.RoundedKey(decimals),
		zoomBucket: int(viewZoom*2 + 0.5),
	}

	bc.mu.Lock()
	if e, ok := bc.cache[key]; ok {
		bc.mu.Unlock()
		return e.bundle, e.stats, nil
	}
	bc.mu.Unlock()

	bucketZoom := float64(key.zoomBucket) / 2.0
	layers := make([]types.Layer, 0, len(cfg.Layers))
	stats := make([]types.LayerStats, 0, len(cfg.Layers))
	for _, lc := range cfg.Layers {
		if lc.Source.Type != scenario.SourceGeoParquet {
			layers = append(layers, types.Layer{ID: lc.ID, Kind: kindOf(lc.Kind), Title: lc.Title, Style: lc.Style})
			stats = append(stats, types.LayerStats{LayerID: lc.ID, Kind: kindOf(lc.Kind), Source: string(lc.Source.Type)})
			continue
		}
		layer, st, err := QueryLayer(ctx, db, lc, aoi, bucketZoom)
		if err != nil {
			return types.LayerBundle{}, nil, fmt.Errorf("query layer %s: %w", lc.ID, err)
		}
		layers = append(layers, layer)
		stats = append(stats, st)
	}

	bundle := types.LayerBundle{Layers: layers}
	bc.mu.Lock()
	if _, exists := bc.cache[key]; !exists {
		bc.order = append(bc.order, key)
	}
	bc.cache[key] = bundleEntry{bundle: bundle, stats: stats}
	for len(bc.order) > bundleCacheSize {
		delete(bc.cache, bc.order[0])
		bc.order = bc.order[1:]
	}
	bc.mu.Unlock()
	return bundle, stats, nil
}
