// Package inmemory implements the AOI engine strategy that loads a
// scenario's layers once, builds a GeoIndex over them, and serves every
// subsequent request by slicing that index — grounded on the teacher's
// load-once-then-serve server wiring (internal/cmd/serve.go), generalized
// from tile rendering to AOI slicing.
package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/MeKo-Tech/mapagent/internal/engine"
	"github.com/MeKo-Tech/mapagent/internal/geoindex"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/MeKo-Tech/mapagent/internal/tile"
	"github.com/MeKo-Tech/mapagent/internal/types"
)

const scenarioCacheSize = 4

type scenarioState struct {
	bundle types.LayerBundle
	index  *geoindex.Index
}

// Engine is the in-memory AOI engine. Scenario bundles are loaded lazily and
// cached by scenario id, bounded to scenarioCacheSize entries.
type Engine struct {
	loader engine.Loader

	mu      sync.Mutex
	cache   *lru.Cache[string, *scenarioState]
	loading map[string]*sync.Once
}

// New builds an in-memory engine backed by loader.
func New(loader engine.Loader) *Engine {
	cache, err := lru.New[string, *scenarioState](scenarioCacheSize)
	if err != nil {
		// lru.New only errors on non-positive size, which scenarioCacheSize never is.
		panic(fmt.Sprintf("inmemory engine: %v", err))
	}
	return &Engine{loader: loader, cache: cache, loading: make(map[string]*sync.Once)}
}

func (e *Engine) Name() string { return "in_memory" }

// Get slices the scenario's cached bundle at the tile zoom derived from
// mc.ViewZoom.
func (e *Engine) Get(ctx context.Context, mc types.MapContext) (types.EngineResult, error) {
	state, err := e.scenario(ctx, mc.ScenarioID)
	if err != nil {
		return types.EngineResult{}, err
	}

	tileZoom := tile.TileZoomForViewZoom(mc.ViewZoom)
	sliced := state.index.SliceLayersTiled(mc.AOI, tileZoom)
	return types.EngineResult{Layers: sliced, Index: state.index}, nil
}

func (e *Engine) scenario(ctx context.Context, scenarioID string) (*scenarioState, error) {
	if s, ok := e.cache.Get(scenarioID); ok {
		return s, nil
	}

	e.mu.Lock()
	once, ok := e.loading[scenarioID]
	if !ok {
		once = &sync.Once{}
		e.loading[scenarioID] = once
	}
	e.mu.Unlock()

	var buildErr error
	var state *scenarioState
	once.Do(func() {
		bundle, err := e.loader.Load(ctx, scenarioID)
		if err != nil {
			buildErr = fmt.Errorf("load scenario %s: %w", scenarioID, err)
			return
		}
		state = &scenarioState{bundle: bundle, index: geoindex.Build(bundle)}
		e.cache.Add(scenarioID, state)
	})

	e.mu.Lock()
	delete(e.loading, scenarioID)
	e.mu.Unlock()

	if buildErr != nil {
		return nil, buildErr
	}
	if state == nil {
		// Another goroutine already populated the cache via its own Once.
		if s, ok := e.cache.Get(scenarioID); ok {
			return s, nil
		}
		return nil, fmt.Errorf("load scenario %s: concurrent load did not populate cache", scenarioID)
	}
	return state, nil
}
