package cmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/mapagent/internal/datasource"
	"github.com/MeKo-Tech/mapagent/internal/engine"
	"github.com/MeKo-Tech/mapagent/internal/engine/duckdb"
	"github.com/MeKo-Tech/mapagent/internal/engine/inmemory"
	"github.com/MeKo-Tech/mapagent/internal/orchestrator"
	"github.com/MeKo-Tech/mapagent/internal/scenario"
	"github.com/MeKo-Tech/mapagent/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Load scenarios and serve the /route prompt endpoint",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address (host:port)")
	serveCmd.Flags().String("duckdb-path", "", "Path to the seeded-mode DuckDB file (empty: MAPAGENT_DUCKDB_PATH, else a per-scenario file)")
	serveCmd.Flags().Int("load-workers", 4, "Number of layers to load concurrently per scenario")
	serveCmd.Flags().Bool("live-ingestion", false, "Query the Overpass API live instead of reading pre-fetched dumps")
	serveCmd.Flags().String("overpass-endpoint", "https://overpass-api.de/api/interpreter", "Overpass API endpoint (live ingestion only)")
	serveCmd.Flags().Int("overpass-workers", 2, "Number of parallel Overpass API requests (live ingestion only)")
	serveCmd.Flags().Bool("telemetry", false, "Record per-request timing telemetry")
	serveCmd.Flags().String("telemetry-path", "", "File to append telemetry JSON lines to (empty: log via slog)")

	mustBind := func(key string, name string) {
		if err := viper.BindPFlag(key, serveCmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}

	mustBind("serve.addr", "addr")
	mustBind("serve.duckdb_path", "duckdb-path")
	mustBind("serve.load_workers", "load-workers")
	mustBind("serve.live_ingestion", "live-ingestion")
	mustBind("serve.overpass_endpoint", "overpass-endpoint")
	mustBind("serve.overpass_workers", "overpass-workers")
	mustBind("serve.telemetry", "telemetry")
	mustBind("serve.telemetry_path", "telemetry-path")
}

func runServe(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	addr := viper.GetString("serve.addr")
	scenariosDir := viper.GetString("scenarios-dir")
	duckdbPath := viper.GetString("serve.duckdb_path")
	loadWorkers := viper.GetInt("serve.load_workers")
	liveIngestion := viper.GetBool("serve.live_ingestion")
	overpassEndpoint := viper.GetString("serve.overpass_endpoint")
	overpassWorkers := viper.GetInt("serve.overpass_workers")
	telemetryEnabled := viper.GetBool("serve.telemetry")
	telemetryPath := viper.GetString("serve.telemetry_path")

	scenarios, err := scenario.LoadDir(scenariosDir)
	if err != nil {
		return fmt.Errorf("load scenarios: %w", err)
	}
	logger.Info("loaded scenarios", "dir", scenariosDir, "count", len(scenarios))

	loader := newLoader(scenarios, loadWorkers, liveIngestion, overpassEndpoint, overpassWorkers)

	lookup := func(id string) (scenario.Config, bool) {
		cfg, ok := scenarios[id]
		return cfg, ok
	}

	engines := map[string]engine.Engine{
		"in_memory": inmemory.New(loader),
		"duckdb":    duckdb.New(loader, lookup, duckdbPath),
	}

	telemetry := orchestrator.NewTelemetry(telemetryEnabled, telemetryPath, logger)
	orch := orchestrator.New(scenarios, engines, telemetry, logger)

	mux := http.NewServeMux()
	mux.Handle("/healthz", server.HealthHandler())
	mux.Handle("/route", server.NewRouteHandler(orch, logger))

	logger.Info("mapagent serving", "addr", addr, "scenarios_dir", scenariosDir,
		"live_ingestion", liveIngestion, "load_workers", loadWorkers)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	return srv.ListenAndServe()
}

// newLoader builds the engine.Loader backing both engines: a static
// pre-fetched-dump loader by default (original_source/backend/layers/
// loaders.py's model), or a live Overpass-querying loader when
// --live-ingestion is set.
func newLoader(scenarios map[string]scenario.Config, workers int, live bool, endpoint string, overpassWorkers int) engine.Loader {
	if !live {
		return datasource.NewScenarioLoader(scenarios, workers)
	}

	cfg := datasource.DefaultOverpassConfig()
	if endpoint != "" {
		cfg.Endpoint = endpoint
	}
	if overpassWorkers > 0 {
		cfg.Workers = overpassWorkers
	}
	client := datasource.NewOverpassClient(cfg)
	return datasource.NewLiveScenarioLoader(scenarios, client, workers)
}
