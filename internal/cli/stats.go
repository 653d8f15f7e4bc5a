package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show stored bike path counts",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	stats, err := dbClient.CollectionStats(cmd.Context())
	if err != nil {
		return fmt.Errorf("collection stats: %w", err)
	}

	p := newPrinter(os.Stdout)
	p.field("Table", stats.Table)
	p.field("Documents", stats.Documents)
	if stats.LatestExtraction != nil {
		p.field("Latest extraction", stats.LatestExtraction.Format(time.RFC3339))
	} else {
		p.field("Latest extraction", "never")
	}

	if len(stats.ByType) > 0 {
		fmt.Println()
		rows := make([][]string, 0, len(stats.ByType))
		for _, t := range stats.ByType {
			rows = append(rows, []string{t.Type, fmt.Sprint(t.Count)})
		}
		p.table([]string{"TYPE", "COUNT"}, rows)
	}

	if len(stats.BySurface) > 0 {
		fmt.Println()
		rows := make([][]string, 0, len(stats.BySurface))
		for _, s := range stats.BySurface {
			rows = append(rows, []string{s.Surface, fmt.Sprint(s.Count)})
		}
		p.table([]string{"SURFACE", "COUNT"}, rows)
	}
	return nil
}
