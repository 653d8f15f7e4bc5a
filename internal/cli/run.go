package cli

import (
	"fmt"
	"os"

	"github.com/raphaelgruber/bikepaths/internal/service"
	"github.com/spf13/cobra"
)

var (
	runLimit   int
	runDryRun  bool
	runGeoJSON string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Extract, clean and load bike paths",
	Long: `Fetch bike path records from the open data portal, validate and normalize
them, and upsert the accepted records into SurrealDB.

Rejected records are counted by reason and never written. With --dry-run
nothing is written to the database and no connection is made.

Examples:
  bikepaths run
  bikepaths run --limit 100
  bikepaths run --dry-run --geojson paths.geojson`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().IntVarP(&runLimit, "limit", "n", 0, "max records to fetch (0 = all)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "extract and clean only, write nothing")
	runCmd.Flags().StringVar(&runGeoJSON, "geojson", "", "also write the accepted records as GeoJSON to this file")
}

func runRun(cmd *cobra.Command, args []string) error {
	if runLimit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}

	opts := service.PipelineOptions{
		DryRun:           runDryRun,
		WriteConcurrency: cfg.WriteConcurrency,
	}
	if runGeoJSON != "" {
		f, err := os.Create(runGeoJSON)
		if err != nil {
			return fmt.Errorf("create geojson file: %w", err)
		}
		defer f.Close()
		opts.GeoJSON = f
	}

	// A nil *db.Client must not become a non-nil interface.
	var store service.PipelineStore
	if dbClient != nil {
		store = dbClient
	}

	pipeline := service.NewPipeline(newExtractor(), store, opts, nil, logger)
	summary, err := pipeline.Run(cmd.Context(), runLimit)

	newPrinter(os.Stdout).printSummary(summary, runDryRun)
	if err != nil {
		return fmt.Errorf("pipeline run %s: %w", summary.RunID, err)
	}
	if runGeoJSON != "" {
		fmt.Printf("\nGeoJSON written to %s\n", runGeoJSON)
	}
	return nil
}
