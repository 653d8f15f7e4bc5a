package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var pruneDays int

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete bike paths not seen in recent extractions",
	Long: `Delete stored bike paths whose extraction timestamp is older than --days.

Loads only ever insert or replace, so paths removed from the source stay in
the database until pruned.

Examples:
  bikepaths prune --days 30`,
	Args: cobra.NoArgs,
	RunE: runPrune,
}

func init() {
	pruneCmd.Flags().IntVar(&pruneDays, "days", 0, "delete paths extracted more than this many days ago (required)")
	_ = pruneCmd.MarkFlagRequired("days")
}

func runPrune(cmd *cobra.Command, args []string) error {
	if pruneDays <= 0 {
		return fmt.Errorf("--days must be positive")
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -pruneDays)
	n, err := dbClient.PruneBefore(cmd.Context(), cutoff)
	if err != nil {
		return fmt.Errorf("prune: %w", err)
	}

	fmt.Printf("Deleted %d bike paths extracted before %s\n", n, cutoff.Format(time.RFC3339))
	return nil
}
