// Package app provides application initialization and dependency wiring.
//
// App is the container that assembles the pipeline: database pool, Genkit,
// the knowledge and session stores, the translation gateway, the composer,
// and the chat orchestrator. Setup builds everything in dependency order;
// Close releases it in reverse.
package app

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shakti-ai/shakti/internal/chat"
	"github.com/shakti-ai/shakti/internal/composer"
	"github.com/shakti-ai/shakti/internal/config"
	"github.com/shakti-ai/shakti/internal/knowledge"
	"github.com/shakti-ai/shakti/internal/log"
	"github.com/shakti-ai/shakti/internal/session"
	"github.com/shakti-ai/shakti/internal/translate"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	// Core services
	Genkit       *genkit.Genkit
	Embedder     ai.Embedder
	DBPool       *pgxpool.Pool
	Knowledge    *knowledge.Store
	Sessions     *session.Store
	Translator   *translate.Gateway
	Composer     *composer.Composer
	Orchestrator *chat.Orchestrator

	// Lifecycle management
	otelCleanup func()
	dbCleanup   func()
}

// Close gracefully shuts down all resources. Safe to call on a partially
// initialized App.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.dbCleanup != nil {
		a.dbCleanup()
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return nil
}
