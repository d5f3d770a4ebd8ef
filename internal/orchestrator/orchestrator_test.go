package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/mapagent/internal/engine"
	"github.com/MeKo-Tech/mapagent/internal/engine/inmemory"
	"github.com/MeKo-Tech/mapagent/internal/scenario"
	"github.com/MeKo-Tech/mapagent/internal/types"
)

type stubLoader struct {
	bundle types.LayerBundle
}

func (s stubLoader) Load(ctx context.Context, scenarioID string) (types.LayerBundle, error) {
	return s.bundle, nil
}

func testScenario() scenario.Config {
	return scenario.Config{
		ID:       "flood-demo",
		DataSize: "small",
		Layers: []scenario.LayerConfig{
			{ID: "places", Kind: "points"},
		},
		Routing: scenario.Routing{
			ShowLayersKeywords: []string{"show layers"},
		},
	}
}

func testBundle() types.LayerBundle {
	return types.LayerBundle{Layers: []types.Layer{
		{ID: "places", Kind: types.KindPoints, Title: "Places", Points: []types.PointFeature{
			{ID: "1", Lon: 9.7, Lat: 52.37, Props: types.Props{"label": "Shelter A"}},
			{ID: "2", Lon: 9.71, Lat: 52.38, Props: types.Props{"label": "Shelter B"}},
		}},
	}}
}

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	cfg := testScenario()
	eng := inmemory.New(stubLoader{bundle: testBundle()})
	o := New(
		map[string]scenario.Config{cfg.ID: cfg},
		map[string]engine.Engine{"in_memory": eng},
		NewTelemetry(false, "", nil),
		nil,
	)
	o.WordDelay = 0
	return o
}

func drain(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var events []Event
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, e)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for events")
		}
	}
}

func TestHandleEmitsAppendThenPlotDataThenCommit(t *testing.T) {
	o := newTestOrchestrator(t)
	req := Request{
		ScenarioID: "flood-demo",
		AOI:        types.NewBBox(9.6, 52.3, 9.8, 52.4),
		ViewZoom:   12,
		Prompt:     "show layers",
	}
	events := drain(t, o.Handle(context.Background(), req))
	require.NotEmpty(t, events)

	lastKind := events[len(events)-1].Kind
	assert.Equal(t, EventCommit, lastKind)

	sawPlotData := false
	for _, e := range events[:len(events)-1] {
		if e.Kind == EventPlotData {
			sawPlotData = true
			continue
		}
		if sawPlotData {
			t.Fatalf("event %v appeared after plot_data but before commit", e.Kind)
		}
		assert.Equal(t, EventAppend, e.Kind)
	}
	assert.True(t, sawPlotData)
}

func TestHandleUnknownScenarioReportsBackendError(t *testing.T) {
	o := newTestOrchestrator(t)
	events := drain(t, o.Handle(context.Background(), Request{ScenarioID: "nope"}))

	require.Len(t, events, 2)
	assert.Equal(t, EventAppend, events[0].Kind)
	assert.Contains(t, events[0].Data, "Backend error: config")
	assert.Equal(t, EventCommit, events[1].Kind)
}

func TestHandlePlotDataPayloadIsValidPlot(t *testing.T) {
	o := newTestOrchestrator(t)
	events := drain(t, o.Handle(context.Background(), Request{
		ScenarioID: "flood-demo",
		AOI:        types.NewBBox(9.6, 52.3, 9.8, 52.4),
		ViewZoom:   12,
		Prompt:     "show layers",
	}))

	var payload string
	for _, e := range events {
		if e.Kind == EventPlotData {
			payload = e.Data
		}
	}
	require.NotEmpty(t, payload)
	assert.Contains(t, payload, `"mapbox"`)
	assert.Contains(t, payload, `"stats"`)
}

func TestLODCacheKeyStableAcrossRepeatedRequests(t *testing.T) {
	mc := types.MapContext{ViewZoom: 12, AOI: types.NewBBox(9.6, 52.3, 9.8, 52.4)}
	k1 := lodCacheKey("flood-demo", "in_memory", "places", mc, nil)
	k2 := lodCacheKey("flood-demo", "in_memory", "places", mc, nil)
	assert.Equal(t, k1, k2)
}
