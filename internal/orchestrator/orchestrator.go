// Package orchestrator drives one request end-to-end: resolve the
// scenario's engine, query it, route the prompt, reduce to a rendering
// budget, build the trace payload, and stream the three SSE-like event
// kinds the frontend expects — grounded on spec.md §4.7/§5/§6 and the
// teacher's internal/server handler style (context-cancellation aware,
// structured slog logging throughout).
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/MeKo-Tech/mapagent/internal/apperr"
	"github.com/MeKo-Tech/mapagent/internal/engine"
	"github.com/MeKo-Tech/mapagent/internal/lod"
	"github.com/MeKo-Tech/mapagent/internal/router"
	"github.com/MeKo-Tech/mapagent/internal/scenario"
	"github.com/MeKo-Tech/mapagent/internal/tile"
	"github.com/MeKo-Tech/mapagent/internal/trace"
	"github.com/MeKo-Tech/mapagent/internal/types"
)

const lodCacheSize = 64

// EventKind names one of the three SSE-like event kinds (§6).
type EventKind string

const (
	EventAppend   EventKind = "append"
	EventPlotData EventKind = "plot_data"
	EventCommit   EventKind = "commit"
)

// Event is one frame of the response stream.
type Event struct {
	Kind EventKind
	Data string
}

// Request is one conceptual request (§6): a scenario, a map viewport, an
// optional engine hint, and the prompt to route.
type Request struct {
	ScenarioID string
	AOI        types.BBox
	ViewCenter types.ViewCenter
	ViewZoom   float64
	Viewport   types.Viewport
	EngineHint string
	Prompt     string
}

// Orchestrator wires the scenario registry to the two engine instances, the
// router, the LOD pipeline and the trace builder.
type Orchestrator struct {
	scenarios map[string]scenario.Config
	engines   map[string]engine.Engine
	lodCache  *lru.Cache[string, lod.Result]
	telemetry *Telemetry
	logger    *slog.Logger

	// WordDelay paces the append stream (spec §5: "word-by-word with a
	// small delay"). Zero disables the delay, which tests want.
	WordDelay time.Duration
}

// New builds an Orchestrator. engines must contain at least "in_memory" and,
// if any scenario's dataSize is "large" or a caller ever hints "duckdb",
// "duckdb" too.
func New(scenarios map[string]scenario.Config, engines map[string]engine.Engine, telemetry *Telemetry, logger *slog.Logger) *Orchestrator {
	cache, err := lru.New[string, lod.Result](lodCacheSize)
	if err != nil {
		panic(fmt.Sprintf("orchestrator: %v", err))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		scenarios: scenarios,
		engines:   engines,
		lodCache:  cache,
		telemetry: telemetry,
		logger:    logger,
		WordDelay: 15 * time.Millisecond,
	}
}

// Handle runs the full per-request pipeline and returns a channel of events
// in the order append* -> plot_data -> commit. The channel is closed after
// commit or after a request-fatal error (reported as append+commit).
func (o *Orchestrator) Handle(ctx context.Context, req Request) <-chan Event {
	out := make(chan Event, 16)
	go func() {
		defer close(out)
		o.run(ctx, req, out)
	}()
	return out
}

func (o *Orchestrator) run(ctx context.Context, req Request, out chan<- Event) {
	start := time.Now()
	rec := timingRecord{ScenarioID: req.ScenarioID}

	cfg, ok := o.scenarios[req.ScenarioID]
	if !ok {
		o.fail(out, apperr.Config("resolve scenario", fmt.Errorf("unknown scenario %q", req.ScenarioID)))
		return
	}

	eng, engName := o.selectEngine(cfg, req.EngineHint)
	rec.Engine = engName

	mc := types.MapContext{
		ScenarioID: cfg.ID,
		AOI:        req.AOI.Normalized(),
		ViewCenter: req.ViewCenter,
		ViewZoom:   req.ViewZoom,
		Viewport:   req.Viewport,
	}

	engineStart := time.Now()
	result, err := eng.Get(ctx, mc)
	rec.EngineMs = msSince(engineStart)
	if err != nil {
		o.fail(out, apperr.Resource("engine get", err))
		return
	}

	if ctx.Err() != nil {
		return
	}

	routeStart := time.Now()
	resp := router.Route(req.Prompt, result.Layers, result.Index, mc.AOI, cfg.Routing, mc.ViewCenter)
	rec.RouteMs = msSince(routeStart)

	if ctx.Err() != nil {
		return
	}

	primaryPointLayerID := cfg.Plot.PrimaryPointLayerID
	if primaryPointLayerID == "" {
		primaryPointLayerID = cfg.Routing.PrimaryPointsLayerID
	}

	highlights := make(lod.HighlightSet)
	var highlightResults []lod.HighlightResult
	for _, h := range resp.Highlights {
		highlights[h.LayerID] = h.FeatureIDs
		highlightResults = append(highlightResults, lod.BuildHighlight(result.Layers, h))
	}

	lodStart := time.Now()
	lodResult, cacheHit := o.lodFor(result.Layers, cfg.ID, engName, primaryPointLayerID, mc, resp.Highlights)
	rec.LODMs = msSince(lodStart)
	rec.LODCacheHit = cacheHit

	o.streamWords(ctx, out, resp.Message)
	if ctx.Err() != nil {
		return
	}

	if extra := cappedFragment(highlightResults); extra != "" {
		o.streamWords(ctx, out, extra)
	}
	if ctx.Err() != nil {
		return
	}

	traceStart := time.Now()
	var highlightPtr *types.Highlight
	if len(resp.Highlights) > 0 {
		h := resp.Highlights[0]
		highlightPtr = &h
	}
	plot := trace.BuildMapPlot(lodResult.Layers, trace.BuildOptions{
		AOI:            &mc.AOI,
		Highlight:      highlightPtr,
		ViewCenter:     mc.ViewCenter,
		ViewZoom:       &mc.ViewZoom,
		Viewport:       mc.Viewport,
		FocusMap:       resp.FocusMap,
		Clusters:       lodResult.Clusters,
		ClusterLayerID: lodResult.ClusterLayerID,
	})
	payload, err := json.Marshal(plot)
	rec.TraceMs = msSince(traceStart)
	if err != nil {
		o.fail(out, apperr.Render("serialize plot", err))
		return
	}
	rec.PayloadBytes = len(payload)

	select {
	case out <- Event{Kind: EventPlotData, Data: string(payload)}:
	case <-ctx.Done():
		return
	}
	select {
	case out <- Event{Kind: EventCommit}:
	case <-ctx.Done():
		return
	}

	rec.TotalMs = msSince(start)
	o.recordTelemetry(rec)
}

func (o *Orchestrator) selectEngine(cfg scenario.Config, hint string) (engine.Engine, string) {
	name := "in_memory"
	if hint != "" {
		name = hint
	}
	if cfg.IsLarge() {
		name = "duckdb"
	}
	eng, ok := o.engines[name]
	if !ok {
		name = "in_memory"
		eng = o.engines[name]
	}
	return eng, name
}

func (o *Orchestrator) streamWords(ctx context.Context, out chan<- Event, msg string) {
	if msg == "" {
		return
	}
	words := strings.Fields(msg)
	for i, w := range words {
		token := w
		if i < len(words)-1 {
			token += " "
		}
		select {
		case out <- Event{Kind: EventAppend, Data: token}:
		case <-ctx.Done():
			return
		}
		if o.WordDelay > 0 {
			select {
			case <-time.After(o.WordDelay):
			case <-ctx.Done():
				return
			}
		}
	}
}

func (o *Orchestrator) fail(out chan<- Event, err error) {
	msg := apperr.BackendMessage(err)
	o.logger.Error("request failed", "error", err)
	select {
	case out <- Event{Kind: EventAppend, Data: msg}:
	default:
	}
	select {
	case out <- Event{Kind: EventCommit}:
	default:
	}
}

func cappedFragment(results []lod.HighlightResult) string {
	var parts []string
	for _, r := range results {
		rendered := r.Rendered()
		if rendered < r.Requested {
			title := r.Highlight.Title
			if title == "" {
				title = "Highlight"
			}
			parts = append(parts, fmt.Sprintf("%s: matched %d, rendering %d due to budget.", title, r.Requested, rendered))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " ")
}

func (o *Orchestrator) lodFor(bundle types.LayerBundle, scenarioID, engineName, clusterLayerID string, mc types.MapContext, highlights []types.Highlight) (lod.Result, bool) {
	key := lodCacheKey(scenarioID, engineName, clusterLayerID, mc, highlights)
	// Peek rather than Get: a read must not refresh the entry, so eviction
	// stays oldest-insertion-first.
	if v, ok := o.lodCache.Peek(key); ok {
		return v, true
	}

	keepSet := make(lod.HighlightSet)
	for _, h := range highlights {
		keepSet[h.LayerID] = h.FeatureIDs
	}

	result := lod.Apply(bundle, mc.ViewZoom, clusterLayerID, keepSet, lod.DefaultBudgets)
	o.lodCache.Add(key, result)
	return result, false
}

func lodCacheKey(scenarioID, engineName, clusterLayerID string, mc types.MapContext, highlights []types.Highlight) string {
	tileZoom := tile.TileZoomForViewZoom(mc.ViewZoom)
	tiles := tile.TilesForBBox(tileZoom, mc.AOI)
	var tb strings.Builder
	for _, t := range tiles {
		tb.WriteString(t.String())
		tb.WriteByte(',')
	}

	roundedAOI := mc.AOI.RoundedKey(4)
	zoomBucket := int(mc.ViewZoom*2 + 0.5)

	var hb strings.Builder
	for _, h := range highlights {
		hb.WriteString(h.LayerID)
		hb.WriteByte(':')
		for _, id := range h.SortedIDs() {
			hb.WriteString(id)
			hb.WriteByte(',')
		}
		hb.WriteByte(';')
	}

	return strings.Join([]string{
		scenarioID, engineName, clusterLayerID,
		strconv.Itoa(tileZoom), strconv.Itoa(zoomBucket),
		tb.String(),
		fmt.Sprintf("%v", roundedAOI),
		hb.String(),
	}, "|")
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000.0
}
