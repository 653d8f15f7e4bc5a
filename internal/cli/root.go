// Package cli provides the command-line interface for bikepaths.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/raphaelgruber/bikepaths/internal/config"
	"github.com/raphaelgruber/bikepaths/internal/db"
	"github.com/raphaelgruber/bikepaths/internal/extract"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose    bool
	configPath string

	// Global config, logger and db client
	cfg        config.Config
	logger     *slog.Logger
	logCleanup func() error
	dbClient   *db.Client
)

// offline marks commands that never touch the database.
const offline = "offline"

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "bikepaths",
	Short: "Quebec bike path ETL",
	Long: `bikepaths extracts municipal bike path records from the Quebec open data
portal, validates and normalizes them, and upserts them into SurrealDB keyed
on their id. The latest run is also kept as a GeoJSON FeatureCollection.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip setup for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		level := cfg.Level()
		if verbose {
			level = slog.LevelDebug
		}
		logger, logCleanup = config.SetupLogger(cfg.LogFile, cfg.LogFormat, level)
		slog.SetDefault(logger)

		if !needsDB(cmd) {
			return nil
		}
		dbClient, err = connectDB(cmd.Context())
		return err
	},
}

func needsDB(cmd *cobra.Command) bool {
	if cmd.Annotations[offline] == "true" {
		return false
	}
	if dry, err := cmd.Flags().GetBool("dry-run"); err == nil && dry {
		return false
	}
	return true
}

// connectDB opens the store and makes sure its schema exists.
func connectDB(ctx context.Context) (*db.Client, error) {
	client, err := db.NewClient(ctx, db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
		Table:     cfg.Collection,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := client.InitSchema(ctx); err != nil {
		_ = client.Close(context.Background())
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return client, nil
}

func newExtractor() *extract.Client {
	return extract.New(extract.Options{
		BaseURL:       cfg.APIBaseURL,
		ResourceID:    cfg.ResourceID,
		Timeout:       cfg.APITimeout,
		RetryAttempts: cfg.APIRetryAttempts,
		BatchSize:     cfg.BatchSize,
	}, logger)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// SIGINT and SIGTERM cancel the command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer cleanup()
	return rootCmd.ExecuteContext(ctx)
}

// cleanup releases what PersistentPreRunE opened. Cobra skips post-run hooks
// when a command fails, so it is deferred from Execute instead.
func cleanup() {
	if dbClient != nil {
		if err := dbClient.Close(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
		dbClient = nil
	}
	if logCleanup != nil {
		_ = logCleanup()
		logCleanup = nil
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")

	// Add subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(jobsCmd)
}
