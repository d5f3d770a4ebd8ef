// Package duckdb implements the columnar AOI engine: per-scenario seeded
// tables for small datasets, and query-on-read GeoParquet for large ones —
// grounded on original_source/backend/engine/duckdb.py,
// duckdb_seeded_db.py, duckdb_common.py, and duckdb_geoparquet.py.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/duckdb/duckdb-go/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/MeKo-Tech/mapagent/internal/engine"
	"github.com/MeKo-Tech/mapagent/internal/engine/duckdb/geoparquet"
	"github.com/MeKo-Tech/mapagent/internal/geoindex"
	"github.com/MeKo-Tech/mapagent/internal/scenario"
	"github.com/MeKo-Tech/mapagent/internal/tile"
	"github.com/MeKo-Tech/mapagent/internal/types"
)

const seededBaseCacheSize = 8

// Engine is the columnar AOI engine. Scenarios with at least one
// geoparquet-sourced layer are served by query-on-read GeoParquet; every
// other scenario is served by a one-time seeded DuckDB table set.
type Engine struct {
	loader   engine.Loader
	scenarios func(id string) (scenario.Config, bool)
	path     string

	bundleCache *geoparquet.BundleCache

	mu    sync.Mutex
	bases *lru.Cache[string, *seededBase]
}

// New builds a columnar engine. scenarios resolves a scenario's config by
// id (used to detect geoparquet sources and drive seeded-mode schema);
// loader loads the raw feature set for seeded-mode scenarios; path
// overrides the DuckDB file path (falls back to MAPAGENT_DUCKDB_PATH / a
// per-scenario file under MAPAGENT_DUCKDB_DIR).
func New(loader engine.Loader, scenarios func(id string) (scenario.Config, bool), path string) *Engine {
	bases, err := lru.New[string, *seededBase](seededBaseCacheSize)
	if err != nil {
		panic(fmt.Sprintf("duckdb engine: %v", err))
	}
	return &Engine{
		loader:      loader,
		scenarios:   scenarios,
		path:        path,
		bundleCache: geoparquet.NewBundleCache(),
		bases:       bases,
	}
}

func (e *Engine) Name() string { return "duckdb" }

func (e *Engine) Get(ctx context.Context, mc types.MapContext) (types.EngineResult, error) {
	cfg, ok := e.scenarios(mc.ScenarioID)
	if !ok {
		return types.EngineResult{}, fmt.Errorf("unknown scenario %q", mc.ScenarioID)
	}

	if hasGeoParquet(cfg) {
		return e.getGeoParquet(ctx, cfg, mc)
	}
	return e.getSeeded(ctx, cfg, mc)
}

func hasGeoParquet(cfg scenario.Config) bool {
	for _, l := range cfg.Layers {
		if l.Source.Type == scenario.SourceGeoParquet {
			return true
		}
	}
	return false
}

func (e *Engine) getGeoParquet(ctx context.Context, cfg scenario.Config, mc types.MapContext) (types.EngineResult, error) {
	db, err := e.scratchConn()
	if err != nil {
		return types.EngineResult{}, err
	}
	defer db.Close()

	bundle, stats, err := e.bundleCache.QueryScenarioLayers(ctx, db, cfg, mc.AOI, mc.ViewZoom)
	if err != nil {
		return types.EngineResult{}, err
	}
	index := geoindex.Build(bundle)
	return types.EngineResult{Layers: bundle, Index: index, Stats: stats}, nil
}

// scratchConn opens a short-lived in-memory connection for GeoParquet
// query-on-read; no table state needs to persist across requests.
func (e *Engine) scratchConn() (*sql.DB, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb scratch conn: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("SET threads=%d", duckdbThreads())); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (e *Engine) getSeeded(ctx context.Context, cfg scenario.Config, mc types.MapContext) (types.EngineResult, error) {
	base, err := e.seededBaseFor(ctx, cfg)
	if err != nil {
		return types.EngineResult{}, err
	}
	tileZoom := tile.TileZoomForViewZoom(mc.ViewZoom)
	sliced, err := base.sliceLayersTiled(ctxSlot(ctx), mc.AOI, tileZoom)
	if err != nil {
		return types.EngineResult{}, err
	}
	return types.EngineResult{Layers: sliced, Index: base.index}, nil
}

func (e *Engine) seededBaseFor(ctx context.Context, cfg scenario.Config) (*seededBase, error) {
	e.mu.Lock()
	if b, ok := e.bases.Get(cfg.ID); ok {
		e.mu.Unlock()
		return b, nil
	}
	e.mu.Unlock()

	bundle, err := e.loader.Load(ctx, cfg.ID)
	if err != nil {
		return nil, fmt.Errorf("load scenario %s: %w", cfg.ID, err)
	}
	path := pathForScenario(cfg.ID, e.path)
	base := newSeededBase(cfg.ID, path, cfg, bundle, duckdbThreads())
	if err := base.ensureInitialized(bundle); err != nil {
		return nil, fmt.Errorf("init seeded db for %s: %w", cfg.ID, err)
	}

	e.mu.Lock()
	e.bases.Add(cfg.ID, base)
	e.mu.Unlock()
	return base, nil
}

// WithWorkerSlot tags ctx with a worker-pool slot index, so concurrent
// requests handled by a bounded worker pool each get their own DuckDB
// connection and tile cache instead of contending on one.
func WithWorkerSlot(ctx context.Context, slot int64) context.Context {
	return context.WithValue(ctx, slotKey{}, slot)
}
