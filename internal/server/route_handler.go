// Package server wraps the orchestrator in an HTTP handler that streams
// its events as Server-Sent Events — grounded on the teacher's
// internal/server/ondemand_tiles.go StatusStreamHandler (SSE headers,
// http.Flusher check, context-cancellation loop).
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/MeKo-Tech/mapagent/internal/orchestrator"
	"github.com/MeKo-Tech/mapagent/internal/types"
)

// RouteRequest is the JSON body accepted by the /route endpoint, mirroring
// spec.md §6's conceptual request shape.
type RouteRequest struct {
	ScenarioID string `json:"scenario_id"`
	Map        struct {
		BBox [4]float64 `json:"bbox"`
		View struct {
			Center types.ViewCenter `json:"center"`
			Zoom   float64          `json:"zoom"`
		} `json:"view"`
		Viewport *types.Viewport `json:"viewport"`
	} `json:"map"`
	Engine   string `json:"engine"`
	Messages []struct {
		Text string `json:"text"`
	} `json:"messages"`
}

func (r RouteRequest) toOrchestratorRequest() orchestrator.Request {
	prompt := ""
	if n := len(r.Messages); n > 0 {
		prompt = r.Messages[n-1].Text
	}
	viewport := types.DefaultViewport
	if r.Map.Viewport != nil {
		viewport = *r.Map.Viewport
	}
	return orchestrator.Request{
		ScenarioID: r.ScenarioID,
		AOI:        types.NewBBox(r.Map.BBox[0], r.Map.BBox[1], r.Map.BBox[2], r.Map.BBox[3]),
		ViewCenter: r.Map.View.Center,
		ViewZoom:   r.Map.View.Zoom,
		Viewport:   viewport,
		EngineHint: r.Engine,
		Prompt:     prompt,
	}
}

// RouteHandler builds the /route SSE endpoint backed by o.
type RouteHandler struct {
	orch   *orchestrator.Orchestrator
	logger *slog.Logger
}

// NewRouteHandler wraps orch as an http.Handler.
func NewRouteHandler(orch *orchestrator.Orchestrator, logger *slog.Logger) *RouteHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RouteHandler{orch: orch, logger: logger}
}

func (h *RouteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	events := h.orch.Handle(r.Context(), req.toOrchestratorRequest())
	for ev := range events {
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, ev.Data); err != nil {
			h.logger.Warn("sse write failed", "error", err)
			return
		}
		flusher.Flush()
	}
}
