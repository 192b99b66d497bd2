// Package api provides the HTTP REST API for the shakti backend.
//
// Endpoints:
//
//	POST   /api/chat            → run one message through the pipeline
//	GET    /api/chats           → list the caller's chats
//	GET    /api/chats/{chatID}  → one chat with its turns
//	DELETE /api/chats/{chatID}  → delete a chat
//	GET    /health              → liveness probe
//	GET    /ready               → readiness probe (database ping)
//
// Callers are identified by the X-User-ID header, set by the fronting proxy
// after authentication.
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: HTTP middleware (logging, recovery)
//   - health.go: health check endpoints (/health, /ready)
//   - chat.go: chat endpoint
//   - chats.go: chat listing and inspection endpoints
//   - response.go: JSON response helpers
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shakti-ai/shakti/internal/cache"
	"github.com/shakti-ai/shakti/internal/log"
	"github.com/shakti-ai/shakti/internal/session"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:8080"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout is the timeout for reading request headers.
	// This prevents Slowloris attacks (CWE-400).
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response.
	// Generation plus translation retries can take a while.
	WriteTimeout = 120 * time.Second

	// IdleTimeout is the maximum time to wait for the next request on keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// ServerConfig contains the dependencies of the HTTP server.
type ServerConfig struct {
	Chat     ChatService
	Sessions SessionReader
	Pool     *pgxpool.Pool
	Logger   log.Logger

	// ListCacheTTL enables caching of per-user chat listings when > 0.
	ListCacheTTL time.Duration
}

// Server is the HTTP server for the REST API.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger

	// Handlers
	health *HealthHandler
	chat   *ChatHandler
	chats  *ChatsHandler
}

// NewServer creates a new HTTP server with all routes registered.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	var lists *listCache
	if cfg.ListCacheTTL > 0 {
		lists = newListCache(cache.New[[]session.Session](cfg.ListCacheTTL))
	}

	mux := http.NewServeMux()
	s := &Server{
		mux:    mux,
		logger: logger,
		health: NewHealthHandler(cfg.Pool, logger),
		chat:   NewChatHandler(cfg.Chat, lists, logger),
		chats:  NewChatsHandler(cfg.Sessions, lists, logger),
	}

	s.health.RegisterRoutes(mux)
	s.chat.RegisterRoutes(mux)
	s.chats.RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → logging → handler
func (s *Server) Handler() http.Handler {
	return chain(s.mux, recoveryMiddleware(s.logger), loggingMiddleware(s.logger))
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
