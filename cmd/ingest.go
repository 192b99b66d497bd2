package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shakti-ai/shakti/internal/app"
	"github.com/shakti-ai/shakti/internal/config"
	"github.com/shakti-ai/shakti/internal/log"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Load reference documents into the knowledge base",
	Long: `Reads .txt and .md files from the given directory (default from config),
splits them into chunks, embeds each chunk, and stores the result. Files
already in the knowledge base are replaced, so re-running after editing a
document is safe.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := ""
		if len(args) > 0 {
			dir = args[0]
		}
		return runIngest(dir)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(dir string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if dir == "" {
		dir = cfg.DocsDir
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := log.New(log.Config{Level: slog.LevelInfo})

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	count, err := a.Knowledge.IngestDir(ctx, dir)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", dir, err)
	}

	total, err := a.Knowledge.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting chunks: %w", err)
	}

	fmt.Printf("Ingested %d chunks from %s (%d total in knowledge base)\n", count, dir, total)
	return nil
}
