package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shakti-ai/shakti/api"
	"github.com/shakti-ai/shakti/internal/app"
	"github.com/shakti-ai/shakti/internal/config"
	"github.com/shakti-ai/shakti/internal/log"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Starts the REST API. The server runs migrations on startup and shuts
down gracefully on SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := log.New(log.Config{Level: slog.LevelInfo, JSON: true})
	logger.Info("starting shakti", "version", AppVersion)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	// First boot on an empty database seeds the knowledge base from the
	// configured docs directory. A seeding failure degrades retrieval but
	// should not keep the server down.
	if count, countErr := a.Knowledge.Count(ctx); countErr != nil {
		logger.Warn("checking knowledge base", "error", countErr)
	} else if count == 0 {
		if n, ingestErr := a.Knowledge.IngestDir(ctx, cfg.DocsDir); ingestErr != nil {
			logger.Warn("seeding knowledge base", "dir", cfg.DocsDir, "error", ingestErr)
		} else {
			logger.Info("knowledge base seeded", "dir", cfg.DocsDir, "chunks", n)
		}
	}

	server := api.NewServer(api.ServerConfig{
		Chat:         a.Orchestrator,
		Sessions:     a.Sessions,
		Pool:         a.DBPool,
		Logger:       logger.With("component", "api"),
		ListCacheTTL: cfg.CacheTTL(),
	})

	addr := serveAddr
	if addr == "" {
		addr = cfg.HTTPAddr
	}

	return server.Run(ctx, addr)
}
