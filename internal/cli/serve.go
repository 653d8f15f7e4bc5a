package cli

import (
	"fmt"
	"time"

	"github.com/raphaelgruber/bikepaths/internal/server"
	"github.com/raphaelgruber/bikepaths/internal/service"
	"github.com/spf13/cobra"
)

var (
	servePort       int
	serveRunTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve health, stats and runs over HTTP",
	Long: `Start an HTTP server exposing:

  GET  /health      source and database health
  GET  /stats       stored counts and phase timings
  GET  /geojson     latest FeatureCollection
  GET  /runs        run history
  POST /jobs        start a pipeline run in the background
  GET  /jobs/{id}   background run status

Examples:
  bikepaths serve
  bikepaths serve --port 9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "listen port")
	serveCmd.Flags().DurationVar(&serveRunTimeout, "run-timeout", 30*time.Minute, "max duration of a background run")
}

func runServe(cmd *cobra.Command, args []string) error {
	pipeline := service.NewPipeline(newExtractor(), dbClient, service.PipelineOptions{
		WriteConcurrency: cfg.WriteConcurrency,
	}, nil, logger)
	jobs := service.NewJobManager(pipeline, serveRunTimeout, logger)

	srv := server.New(pipeline, dbClient, jobs, logger)
	if err := srv.Run(cmd.Context(), fmt.Sprintf(":%d", servePort)); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
