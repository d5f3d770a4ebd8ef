package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/mapagent/internal/engine"
	"github.com/MeKo-Tech/mapagent/internal/engine/inmemory"
	"github.com/MeKo-Tech/mapagent/internal/orchestrator"
	"github.com/MeKo-Tech/mapagent/internal/scenario"
	"github.com/MeKo-Tech/mapagent/internal/types"
)

type stubLoader struct{ bundle types.LayerBundle }

func (s stubLoader) Load(ctx context.Context, scenarioID string) (types.LayerBundle, error) {
	return s.bundle, nil
}

func testOrchestrator() *orchestrator.Orchestrator {
	cfg := scenario.Config{
		ID:       "flood-demo",
		DataSize: "small",
		Layers:   []scenario.LayerConfig{{ID: "places", Kind: "points"}},
		Routing:  scenario.Routing{ShowLayersKeywords: []string{"show layers"}},
	}
	bundle := types.LayerBundle{Layers: []types.Layer{
		{ID: "places", Kind: types.KindPoints, Title: "Places", Points: []types.PointFeature{
			{ID: "1", Lon: 9.7, Lat: 52.37},
		}},
	}}
	eng := inmemory.New(stubLoader{bundle: bundle})
	o := orchestrator.New(
		map[string]scenario.Config{cfg.ID: cfg},
		map[string]engine.Engine{"in_memory": eng},
		orchestrator.NewTelemetry(false, "", nil),
		nil,
	)
	o.WordDelay = 0
	return o
}

func TestRouteHandlerStreamsSSEEvents(t *testing.T) {
	h := NewRouteHandler(testOrchestrator(), nil)

	body := RouteRequest{ScenarioID: "flood-demo"}
	body.Map.BBox = [4]float64{9.6, 52.3, 9.8, 52.4}
	body.Map.View.Zoom = 12
	body.Messages = []struct {
		Text string `json:"text"`
	}{{Text: "show layers"}}

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))

	req := httptest.NewRequest(http.MethodPost, "/route", &buf)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	resp := rec.Result()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	out := rec.Body.String()
	assert.Contains(t, out, "event: append")
	assert.Contains(t, out, "event: plot_data")
	assert.Contains(t, out, "event: commit")
}

func TestRouteHandlerRejectsNonPost(t *testing.T) {
	h := NewRouteHandler(testOrchestrator(), nil)
	req := httptest.NewRequest(http.MethodGet, "/route", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	HealthHandler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
