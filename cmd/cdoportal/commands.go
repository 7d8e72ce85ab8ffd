package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"cdoportal/internal/app"
	"cdoportal/internal/config"
	"cdoportal/internal/domain"
	"cdoportal/internal/logging"
	"cdoportal/internal/usecase"
)

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:   "cdoportal",
		Short: "Federal data portal backend",
		Long: `cdoportal ingests federal data news, policy documents and job listings,
serves them over an HTTP API and runs the career assistant tools.

Example usage:
  cdoportal serve              # HTTP API plus scheduled ingestion
  cdoportal ingest jobs        # One ingestion pass for job listings
  cdoportal seed policy        # Ingest with sample fallback
  cdoportal stats news         # Print table aggregates as JSON`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	load := func() (config.Config, *slog.Logger) {
		cfg := config.Load()
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		return cfg, logging.New(cfg.Logging.Level)
	}

	root.AddCommand(
		newServeCmd(load),
		newIngestCmd(load),
		newSeedCmd(load),
		newStatsCmd(load),
	)
	return root
}

type loader func() (config.Config, *slog.Logger)

func newServeCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and recurring ingestion",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger := load()
			application, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.Serve(cmd.Context()); err != nil {
				logger.Error("application stopped", "error", err)
				return err
			}
			return nil
		},
	}
}

func newIngestCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:       "ingest [news|policy|jobs|all]",
		Short:     "Run one ingestion pass",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"news", "policy", "jobs", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var kinds []domain.Kind
			if len(args) == 1 && args[0] != "all" {
				kind, err := domain.ParseKind(args[0])
				if err != nil {
					return err
				}
				kinds = append(kinds, kind)
			}

			cfg, logger := load()
			application, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			results, err := application.Ingest(cmd.Context(), kinds...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), usecase.BuildDigest(results))
			return nil
		},
	}
}

func newSeedCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <news|policy|jobs>",
		Short: "Ingest one kind and fall back to sample data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseKind(args[0])
			if err != nil {
				return err
			}

			cfg, logger := load()
			application, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			n, err := application.Seed(cmd.Context(), kind)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d items\n", kind, n)
			return nil
		},
	}
}

func newStatsCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <news|policy|jobs>",
		Short: "Print table aggregates as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseKind(args[0])
			if err != nil {
				return err
			}

			cfg, logger := load()
			application, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			stats, err := application.Stats(cmd.Context(), kind)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}
}
