package cli

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/raphaelgruber/bikepaths/internal/service"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the source API and the database",
	Long: `Fetch a single record from the source API and query the database.

Exits non-zero when the database is unreachable. A source outage alone only
degrades the service.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{offline: "true"},
	RunE:        runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Connect here rather than in PersistentPreRunE so an unreachable
	// database is reported instead of aborting the check.
	var store service.PipelineStore
	client, connErr := connectDB(ctx)
	if connErr == nil {
		dbClient = client
		store = client
	}

	report := service.NewPipeline(newExtractor(), store, service.PipelineOptions{}, nil, logger).HealthCheck(ctx)
	if connErr != nil {
		report.Store = "error"
		report.Status = service.HealthUnhealthy
		if report.Errors == nil {
			report.Errors = make(map[string]string)
		}
		report.Errors["store"] = connErr.Error()
	}

	p := newPrinter(os.Stdout)
	p.header(report.Status != service.HealthUnhealthy, "Status: "+report.Status)
	fmt.Println()
	p.field("Source", report.Source)
	p.field("Store", report.Store)
	if report.Stats != nil {
		p.field("Documents", report.Stats.Documents)
		if report.Stats.LatestExtraction != nil {
			p.field("Latest extraction", report.Stats.LatestExtraction.Format(time.RFC3339))
		}
	}
	p.field("Checked at", report.CheckedAt.Format(time.RFC3339))

	if len(report.Errors) > 0 {
		components := make([]string, 0, len(report.Errors))
		for c := range report.Errors {
			components = append(components, c)
		}
		sort.Strings(components)
		fmt.Println()
		for _, c := range components {
			fmt.Printf("  %s: %s\n", c, report.Errors[c])
		}
	}

	if report.Status == service.HealthUnhealthy {
		return errors.New("service unhealthy")
	}
	return nil
}
