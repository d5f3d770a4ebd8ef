package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/mapagent/internal/engine"
	"github.com/MeKo-Tech/mapagent/internal/engine/duckdb"
	"github.com/MeKo-Tech/mapagent/internal/engine/inmemory"
	"github.com/MeKo-Tech/mapagent/internal/orchestrator"
	"github.com/MeKo-Tech/mapagent/internal/scenario"
	"github.com/MeKo-Tech/mapagent/internal/types"
)

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Route a single prompt against a scenario and print the event stream",
	RunE:  runRoute,
}

func init() {
	rootCmd.AddCommand(routeCmd)

	routeCmd.Flags().String("scenario", "", "Scenario id (required)")
	routeCmd.Flags().String("prompt", "", "Prompt text to route")
	routeCmd.Flags().Float64SliceP("bbox", "b", []float64{-180, -90, 180, 90}, "AOI bbox: minLon,minLat,maxLon,maxLat")
	routeCmd.Flags().Float64("zoom", 12, "View zoom level")
	routeCmd.Flags().Float64("center-lat", 0, "View center latitude")
	routeCmd.Flags().Float64("center-lon", 0, "View center longitude")
	routeCmd.Flags().String("engine", "", "Engine hint (in_memory or duckdb; empty: scenario default)")

	_ = routeCmd.MarkFlagRequired("scenario")
}

func runRoute(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	scenariosDir := viper.GetString("scenarios-dir")
	scenarios, err := scenario.LoadDir(scenariosDir)
	if err != nil {
		return fmt.Errorf("load scenarios: %w", err)
	}

	scenarioID, _ := cmd.Flags().GetString("scenario")
	if _, ok := scenarios[scenarioID]; !ok {
		return fmt.Errorf("unknown scenario %q in %s", scenarioID, scenariosDir)
	}

	prompt, _ := cmd.Flags().GetString("prompt")
	bbox, _ := cmd.Flags().GetFloat64Slice("bbox")
	if len(bbox) != 4 {
		return fmt.Errorf("--bbox requires exactly 4 values, got %d", len(bbox))
	}
	zoom, _ := cmd.Flags().GetFloat64("zoom")
	centerLat, _ := cmd.Flags().GetFloat64("center-lat")
	centerLon, _ := cmd.Flags().GetFloat64("center-lon")
	engineHint, _ := cmd.Flags().GetString("engine")

	loader := newLoader(scenarios, 4, viper.GetBool("serve.live_ingestion"),
		viper.GetString("serve.overpass_endpoint"), viper.GetInt("serve.overpass_workers"))

	lookup := func(id string) (scenario.Config, bool) {
		cfg, ok := scenarios[id]
		return cfg, ok
	}
	engines := map[string]engine.Engine{
		"in_memory": inmemory.New(loader),
		"duckdb":    duckdb.New(loader, lookup, viper.GetString("serve.duckdb_path")),
	}

	telemetry := orchestrator.NewTelemetry(false, "", logger)
	orch := orchestrator.New(scenarios, engines, telemetry, logger)
	orch.WordDelay = 0

	req := orchestrator.Request{
		ScenarioID: scenarioID,
		AOI:        types.NewBBox(bbox[0], bbox[1], bbox[2], bbox[3]),
		ViewCenter: types.ViewCenter{Lat: centerLat, Lon: centerLon},
		ViewZoom:   zoom,
		Viewport:   types.DefaultViewport,
		EngineHint: engineHint,
		Prompt:     prompt,
	}

	for ev := range orch.Handle(context.Background(), req) {
		fmt.Printf("event: %s\ndata: %s\n\n", ev.Kind, ev.Data)
	}
	return nil
}
