// Package cli provides the command-line interface for arrgh.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/arrgh-go/internal/config"
	"github.com/raphaelgruber/arrgh-go/internal/db"
	"github.com/raphaelgruber/arrgh-go/internal/llm"
	"github.com/raphaelgruber/arrgh-go/internal/metrics"
	"github.com/raphaelgruber/arrgh-go/internal/pipeline"
	"github.com/raphaelgruber/arrgh-go/internal/service"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config, logger and db client
	cfg       config.Config
	logger    *slog.Logger
	logClose  func() error
	dbClient  *db.Client
	collector *metrics.Collector
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "arrgh",
	Short: "Newsletter knowledge graph extractor",
	Long: `Arrgh reads newsletters, extracts entities and facts with an LLM,
and resolves them into a deduplicated knowledge graph in SurrealDB.

Entity mentions are matched against existing nodes (exact, alias, fuzzy)
before anything new is created, so repeated processing never duplicates
the graph.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip DB connection for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		logger, logClose = config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		slog.SetDefault(logger)
		collector = metrics.NewCollector()

		ctx := context.Background()
		dbCfg := db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}

		var err error
		dbClient, err = db.NewClient(ctx, dbCfg, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}

		if err := dbClient.InitSchema(ctx); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if dbClient != nil {
			if err := dbClient.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}
		if logClose != nil {
			_ = logClose()
		}
	},
}

// getService builds the newsletter service with its LLM-backed pipeline.
func getService() (*service.NewsletterService, error) {
	extractor, err := llm.NewExtractor(cfg)
	if err != nil {
		return nil, fmt.Errorf("init extractor: %w", err)
	}

	p := pipeline.New(dbClient, extractor, cfg, collector, logger)
	return service.NewNewsletterService(p, logger), nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(wipeCmd)
}

// exitWithError prints an error message and exits with code 1.
func exitWithError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
