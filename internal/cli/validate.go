package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/raphaelgruber/bikepaths/internal/extract"
	"github.com/raphaelgruber/bikepaths/internal/transform"
	"github.com/spf13/cobra"
)

var (
	validateShow    int
	validateGeoJSON string
)

var validateCmd = &cobra.Command{
	Use:   "validate FILE",
	Short: "Validate a saved API response without loading it",
	Long: `Run the validator and transformer over a saved datastore_search response
or GeoJSON FeatureCollection and report what would be accepted or rejected.

No network or database access is needed.

Examples:
  bikepaths validate response.json
  bikepaths validate export.geojson --show 20
  bikepaths validate response.json --geojson cleaned.geojson`,
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{offline: "true"},
	RunE:        runValidate,
}

func init() {
	validateCmd.Flags().IntVar(&validateShow, "show", 10, "max rejected records to list")
	validateCmd.Flags().StringVar(&validateGeoJSON, "geojson", "", "write the accepted records as GeoJSON to this file")
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	page, err := extract.ParseBody(data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	sourceURL := "file://" + abs
	extractionTime := time.Now().UTC()

	accepted, rejected, stats := transform.Clean(page.Records, extractionTime, sourceURL)

	p := newPrinter(os.Stdout)
	p.header(stats.Rejected == 0, fmt.Sprintf("%d of %d records valid", stats.Accepted, stats.Total))
	fmt.Println()
	p.field("Accepted", stats.Accepted)
	p.field("Rejected", stats.Rejected)
	p.printReasons(stats.RejectionReasons)

	if len(rejected) > 0 && validateShow > 0 {
		fmt.Println()
		rows := make([][]string, 0, min(validateShow, len(rejected)))
		for _, r := range rejected[:min(validateShow, len(rejected))] {
			rows = append(rows, []string{fmt.Sprint(r.Index), fmt.Sprint(r.Raw["id"]), r.Reason})
		}
		p.table([]string{"INDEX", "ID", "REASON"}, rows)
		if len(rejected) > validateShow {
			p.hint(fmt.Sprintf("... and %d more", len(rejected)-validateShow))
		}
	}

	if validateGeoJSON != "" {
		fc, err := transform.FeatureCollection(accepted, extractionTime, sourceURL)
		if err != nil {
			return fmt.Errorf("build feature collection: %w", err)
		}
		out, err := json.MarshalIndent(fc, "", "  ")
		if err != nil {
			return fmt.Errorf("encode feature collection: %w", err)
		}
		if err := os.WriteFile(validateGeoJSON, out, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", validateGeoJSON, err)
		}
		fmt.Printf("\nGeoJSON written to %s\n", validateGeoJSON)
	}
	return nil
}
