package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/raphaelgruber/bikepaths/internal/client"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	jobsServer     string
	jobsStartLimit int
	jobsNoProgress bool
)

var jobsCmd = &cobra.Command{
	Use:   "jobs [job-id]",
	Short: "List or inspect background runs on a server",
	Long: `List background runs on a running 'bikepaths serve' instance, or inspect
a specific run by ID.

Examples:
  bikepaths jobs           # List all jobs
  bikepaths jobs abc123    # Show details for job abc123
  bikepaths jobs start     # Start a run and follow its progress`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{offline: "true"},
	RunE:        runJobs,
}

var jobsStartCmd = &cobra.Command{
	Use:         "start",
	Short:       "Start a pipeline run on the server",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{offline: "true"},
	RunE:        runJobsStart,
}

func init() {
	jobsCmd.PersistentFlags().StringVar(&jobsServer, "server", "", "server URL (default $QC_BIKE_PATH_SERVER_URL or "+client.DefaultEndpoint+")")
	jobsStartCmd.Flags().IntVarP(&jobsStartLimit, "limit", "n", 0, "max records to fetch (0 = all)")
	jobsStartCmd.Flags().BoolVar(&jobsNoProgress, "no-progress", false, "print the job id and return immediately")
	jobsCmd.AddCommand(jobsStartCmd)
}

func runJobs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c := client.New(jobsServer)

	// If job ID provided, show that specific job
	if len(args) == 1 {
		return showJob(ctx, c, args[0])
	}

	// List all jobs
	return listJobs(ctx, c)
}

func runJobsStart(cmd *cobra.Command, args []string) error {
	c := client.New(jobsServer)
	job, err := c.StartJob(cmd.Context(), jobsStartLimit)
	if errors.Is(err, client.ErrRunInProgress) {
		return fmt.Errorf("%w; see 'bikepaths jobs'", err)
	}
	if err != nil {
		return err
	}

	if jobsNoProgress || !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Printf("Started job %s\n", job.ID)
		return nil
	}
	return RunJobProgress(c, job)
}

func listJobs(ctx context.Context, c *client.Client) error {
	jobs, err := c.ListJobs(ctx)
	if err != nil {
		return err
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		progress := ""
		if job.Total > 0 {
			progress = fmt.Sprintf("%d/%d", job.Progress, job.Total)
		}
		rows = append(rows, []string{
			job.ID,
			job.Status,
			job.Phase,
			progress,
			job.StartedAt.Local().Format("15:04:05"),
		})
	}
	newPrinter(os.Stdout).table([]string{"ID", "STATUS", "PHASE", "PROGRESS", "STARTED"}, rows)
	return nil
}

func showJob(ctx context.Context, c *client.Client, id string) error {
	job, err := c.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job not found: %s", id)
	}

	fmt.Printf("Job: %s\n", job.ID)
	fmt.Printf("  Status: %s\n", job.Status)
	if job.Phase != "" {
		fmt.Printf("  Phase: %s\n", job.Phase)
	}
	if job.Total > 0 {
		fmt.Printf("  Progress: %d/%d\n", job.Progress, job.Total)
	}
	fmt.Printf("  Started: %s\n", job.StartedAt.Format(time.RFC3339))
	if job.CompletedAt != nil {
		fmt.Printf("  Completed: %s\n", job.CompletedAt.Format(time.RFC3339))
		duration := job.CompletedAt.Sub(job.StartedAt)
		fmt.Printf("  Duration: %s\n", duration.Round(time.Second))
	}

	if job.Error != "" {
		fmt.Printf("  Error: %s\n", job.Error)
	}

	if job.Summary != nil {
		fmt.Println()
		newPrinter(os.Stdout).printSummary(*job.Summary, false)
	}
	return nil
}
