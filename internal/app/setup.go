package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/firebase/genkit/go/core/tracing"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/shakti-ai/shakti/db"
	"github.com/shakti-ai/shakti/internal/chat"
	"github.com/shakti-ai/shakti/internal/composer"
	"github.com/shakti-ai/shakti/internal/config"
	"github.com/shakti-ai/shakti/internal/knowledge"
	"github.com/shakti-ai/shakti/internal/log"
	"github.com/shakti-ai/shakti/internal/session"
	"github.com/shakti-ai/shakti/internal/translate"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	pool, dbCleanup, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.dbCleanup = dbCleanup
	a.DBPool = pool

	g, err := provideGenkit(ctx)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}
	a.Embedder = embedder

	a.Knowledge = knowledge.New(knowledge.NewQueries(pool), embedder,
		logger.With("component", "knowledge"))
	a.Sessions = session.New(session.NewQueries(pool), pool,
		logger.With("component", "session"))
	a.Translator = provideTranslator(cfg, logger)

	comp, err := composer.New(composer.Config{
		Genkit:      g,
		Logger:      logger.With("component", "composer"),
		ModelName:   cfg.ModelName,
		Temperature: cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("creating composer: %w", err)
	}
	a.Composer = comp

	orch, err := chat.New(chat.Config{
		Translator:      a.Translator,
		Retriever:       a.Knowledge,
		Sessions:        a.Sessions,
		Composer:        a.Composer,
		Logger:          logger.With("component", "chat"),
		MaxHistoryTurns: cfg.MaxHistoryTurns,
	})
	if err != nil {
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}
	a.Orchestrator = orch

	return a, nil
}

// provideOtelShutdown exports traces to an OTLP HTTP collector when an
// endpoint is configured. Must run before provideGenkit so the
// TracerProvider is ready.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	if cfg.OTLPEndpoint == "" {
		return func() {}
	}

	// Set OTEL env vars for Genkit's TracerProvider to pick up.
	// SAFETY: os.Setenv is not concurrent-safe, but this function is called
	// exactly once during startup in Setup, before goroutines are spawned.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(), // local collector doesn't need TLS
	)
	if err != nil {
		logger.Warn("creating trace exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("trace export enabled",
		"endpoint", cfg.OTLPEndpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	shutdown := tracing.TracerProvider().Shutdown

	//nolint:contextcheck // Independent context: shutdown runs during teardown when parent is canceled
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideGenkit initializes Genkit with the Google AI plugin. The plugin
// reads GEMINI_API_KEY from the environment; config validation has already
// confirmed it is set.
func provideGenkit(ctx context.Context) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit")
	}
	return g, nil
}

// provideDBPool creates a PostgreSQL connection pool and runs migrations.
// Pool is configured with sensible defaults for connection management.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	cleanup := func() {
		pool.Close()
	}

	return pool, cleanup, nil
}

// provideTranslator wires the inference client and retry policy into a
// translation gateway.
func provideTranslator(cfg *config.Config, logger log.Logger) *translate.Gateway {
	client := translate.NewClient(cfg.InferenceBaseURL, cfg.InferenceAPIKey,
		logger.With("component", "translate"))

	policy := translate.DefaultPolicy()
	if cfg.TranslateAttempts > 0 {
		policy.MaxAttempts = cfg.TranslateAttempts
	}
	if cfg.TranslateTimeoutSec > 0 {
		policy.AttemptTimeout = cfg.TranslateTimeout()
	}

	return translate.NewGateway(client, cfg.IndicToEnglishModel, cfg.EnglishToIndicModel,
		policy, logger.With("component", "translate"))
}
