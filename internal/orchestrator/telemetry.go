package orchestrator

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
)

// timingRecord is one request's best-effort telemetry line (§4.7 step 8).
type timingRecord struct {
	ScenarioID   string  `json:"scenarioId"`
	Engine       string  `json:"engine"`
	EngineMs     float64 `json:"engineMs"`
	RouteMs      float64 `json:"routeMs"`
	LODMs        float64 `json:"lodMs"`
	LODCacheHit  bool    `json:"lodCacheHit"`
	TraceMs      float64 `json:"traceMs"`
	PayloadBytes int     `json:"payloadBytes"`
	TotalMs      float64 `json:"totalMs"`
}

// Telemetry appends timingRecord lines to a file when enabled, or logs them
// via slog when no path is configured. Failures to write are logged and
// otherwise ignored — telemetry is explicitly best-effort (§4.7 step 8).
type Telemetry struct {
	enabled bool
	path    string
	logger  *slog.Logger

	mu   sync.Mutex
	file *os.File
}

// NewTelemetry builds a Telemetry sink from the TELEMETRY/TELEMETRY_PATH
// environment knobs (§6).
func NewTelemetry(enabled bool, path string, logger *slog.Logger) *Telemetry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Telemetry{enabled: enabled, path: path, logger: logger}
}

func (t *Telemetry) record(rec timingRecord) {
	if t == nil || !t.enabled {
		return
	}
	if t.path == "" {
		t.logger.Info("request timing",
			"scenario", rec.ScenarioID, "engine", rec.Engine,
			"engine_ms", rec.EngineMs, "route_ms", rec.RouteMs,
			"lod_ms", rec.LODMs, "lod_cache_hit", rec.LODCacheHit,
			"trace_ms", rec.TraceMs, "payload_bytes", rec.PayloadBytes,
			"total_ms", rec.TotalMs)
		return
	}

	line, err := json.Marshal(rec)
	if err != nil {
		t.logger.Warn("telemetry marshal failed", "error", err)
		return
	}
	line = append(line, '\n')

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file == nil {
		f, err := os.OpenFile(t.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			t.logger.Warn("telemetry open failed", "path", t.path, "error", err)
			return
		}
		t.file = f
	}
	if _, err := t.file.Write(line); err != nil {
		t.logger.Warn("telemetry write failed", "path", t.path, "error", err)
	}
}

func (o *Orchestrator) recordTelemetry(rec timingRecord) {
	o.telemetry.record(rec)
}
