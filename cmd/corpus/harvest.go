package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pwjlab/corpus/internal/anthology"
	"github.com/pwjlab/corpus/internal/grobid"
	"github.com/pwjlab/corpus/internal/pipeline"
	"github.com/pwjlab/corpus/internal/s2"
	"github.com/spf13/cobra"
)

func init() {
	harvestCmd.Flags().BoolVar(&harvestVerbose, "verbose", false, "Log every stage outcome")
	rootCmd.AddCommand(harvestCmd)
}

var harvestVerbose bool

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Run the acquisition pipeline until the ledger is drained",
	Long: `Process open ledger entries in batches. Each batch runs the metadata,
archive, and extraction stages, persists the results, and throttles
before selecting the next batch. The run ends when no open entries
remain or on interrupt.`,
	RunE: runHarvest,
}

func runHarvest(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()

	s := mustOpenStore(cfg)
	defer s.Close()

	level := slog.LevelInfo
	if harvestVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	metadata := s2.NewClient(
		s2.WithBaseURL(cfg.S2BaseURL),
		s2.WithAPIKey(cfg.S2APIKey),
		s2.WithFields(cfg.S2Fields),
	)
	archive := anthology.NewClient(anthology.WithBaseURL(cfg.AnthologyURL))
	extractor := grobid.NewClient(grobid.WithBaseURL(cfg.GrobidURL))

	orch := pipeline.NewOrchestrator(s, s, metadata, archive, extractor,
		pipeline.WithBatchSize(cfg.BatchSize),
		pipeline.WithCycleFloor(cfg.CycleFloor),
		pipeline.WithLogger(logger),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := orch.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "harvest interrupted")
			return nil
		}
		exitWithError(ExitError, "harvest: %v", err)
	}
	return nil
}
