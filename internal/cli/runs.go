package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent pipeline runs",
	Long: `List pipeline runs recorded in the database, most recent first.

Examples:
  bikepaths runs
  bikepaths runs --limit 5`,
	Args: cobra.NoArgs,
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "max runs")
}

func runRuns(cmd *cobra.Command, args []string) error {
	runs, err := dbClient.ListRuns(cmd.Context(), runsLimit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Println("No runs found")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		processed, inserted, updated := "", "", ""
		if run.Result != nil {
			processed = fmt.Sprint(run.Result["records_processed"])
			inserted = fmt.Sprint(run.Result["records_inserted"])
			updated = fmt.Sprint(run.Result["records_updated"])
		}
		duration := ""
		if run.CompletedAt != nil {
			duration = run.CompletedAt.Sub(run.StartedAt).Round(time.Second).String()
		}
		rows = append(rows, []string{
			run.RunID(),
			run.Status,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			duration,
			processed,
			inserted,
			updated,
		})
	}

	newPrinter(os.Stdout).table(
		[]string{"ID", "STATUS", "STARTED", "DURATION", "PROCESSED", "INSERTED", "UPDATED"},
		rows,
	)
	return nil
}
