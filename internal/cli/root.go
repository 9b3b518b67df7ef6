// Package cli provides the command-line interface for queryroute.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kongusen/AutoReportAI-sub000/internal/catalog"
	"github.com/kongusen/AutoReportAI-sub000/internal/cli/commands"
	"github.com/kongusen/AutoReportAI-sub000/internal/config"
	"github.com/kongusen/AutoReportAI-sub000/internal/router"
	"github.com/kongusen/AutoReportAI-sub000/internal/semantic"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "queryroute",
		Short: "queryroute - Multi-Source Query Routing Engine",
		Long: `queryroute turns natural-language requests into executable SQL across
multiple data sources.

It analyzes the request, matches it against introspected schemas, plans
and optimizes per-source tasks, executes them concurrently, and merges
the results. A declarative ETL path converts structured requirements
into validated single-table instructions with confidence scoring.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			logger := slog.New(slog.DiscardHandler)
			if cfg.Verbose {
				logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
					Level: slog.LevelDebug,
				}))
			}

			registry := cfg.Registry(logger)

			var store *catalog.Store
			if cfg.CatalogPath != "" {
				store = catalog.NewStore()
				if err := store.Open(cfg.CatalogPath); err != nil {
					return fmt.Errorf("opening catalog: %w", err)
				}
				if err := store.InitSchema(); err != nil {
					return fmt.Errorf("initializing catalog: %w", err)
				}
				if err := store.LoadInto(registry); err != nil {
					return fmt.Errorf("loading catalog: %w", err)
				}
			}

			rt := router.New(registry, semantic.DefaultVocabulary(), logger)
			if cfg.Executor.MaxWorkers > 0 {
				rt.Executor().MaxWorkers = cfg.Executor.MaxWorkers
			}
			if cfg.Executor.RowLimit > 0 {
				rt.Executor().RowLimit = cfg.Executor.RowLimit
			}
			if cfg.Batch.PageSize > 0 {
				rt.BatchRunner().PageSize = cfg.Batch.PageSize
			}
			if cfg.Batch.MemoryThreshold > 0 {
				rt.BatchRunner().MemoryThreshold = cfg.Batch.MemoryThreshold
			}

			deps := &commands.Deps{
				Config:   cfg,
				Registry: registry,
				Router:   rt,
				Store:    store,
				Logger:   logger,
			}
			cmd.SetContext(commands.WithDeps(cmd.Context(), deps))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if d, err := commands.DepsFrom(cmd); err == nil && d.Store != nil {
				return d.Store.Close()
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set version template
	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Multi-source query routing and ETL engine
`)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./queryroute.yaml)")
	rootCmd.PersistentFlags().String("catalog", "", "Path to the catalog database")
	rootCmd.PersistentFlags().Int("workers", 0, "Maximum concurrent tasks")
	rootCmd.PersistentFlags().Int("row-limit", 0, "Row limit injected into generated queries")
	rootCmd.PersistentFlags().Int("timeout", 0, "Per-request timeout in seconds")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")

	// Add subcommands
	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewRouteCommand())
	rootCmd.AddCommand(commands.NewETLCommand())
	rootCmd.AddCommand(commands.NewSourcesCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
