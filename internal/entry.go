// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/nibzard/ctxt/internal/api"
	"github.com/nibzard/ctxt/internal/draft"
	"github.com/nibzard/ctxt/internal/extract"
	"github.com/nibzard/ctxt/internal/importqueue"
	"github.com/nibzard/ctxt/internal/kvstore"
	"github.com/nibzard/ctxt/internal/mcpserver"
	"github.com/nibzard/ctxt/internal/published"
	"github.com/nibzard/ctxt/internal/reconciler"
	"github.com/nibzard/ctxt/internal/session"
)

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("profile_path", cfg.Profile.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Initialize profile store for the draft and import queue.
	kv, err := kvstore.NewFS(cfg.Profile.Path)
	if err != nil {
		return fmt.Errorf("init profile store: %w", err)
	}

	// Initialize published-stack repository.
	repo, err := published.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init published repo: %w", err)
	}
	defer repo.Close()

	drafts := draft.NewStore(kv)
	queue := importqueue.New(kv, logger)
	rec := reconciler.New(queue, logger)

	sess, err := session.New(session.Config{
		Drafts:     drafts,
		Queue:      queue,
		Reconciler: rec,
		Publisher:  repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("init session: %w", err)
	}

	extractor := extract.New(time.Duration(cfg.Extract.TimeoutSeconds)*time.Second, cfg.Extract.UserAgent)

	// Build API router.
	apiRouter := api.NewRouter(sess, repo, extractor, cfg.Auth.AuthEnabled(), cfg.Auth.Token)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the import queue file and fold bursts of writes into one merge.
	deb := reconciler.NewDebouncer(time.Duration(cfg.Import.DebounceMillis) * time.Millisecond)
	g.Go(func() error {
		deb.Run(gCtx, func() {
			accepted, mergeErr := sess.ReconcileImports()
			if mergeErr != nil {
				logger.Warn("import merge failed", slog.String("error", mergeErr.Error()))
				return
			}
			if accepted > 0 {
				logger.Info("imports merged", slog.Int("accepted", accepted))
			}
		})
		return nil
	})
	g.Go(func() error {
		if err := reconciler.WatchQueue(gCtx, queue.WatchPath(), deb, logger); err != nil {
			logger.Warn("queue watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tool set over stdin/stdout.
func RunMCP(_ context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Log to stderr; stdout carries the MCP protocol stream.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	repo, err := published.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init published repo: %w", err)
	}
	defer repo.Close()

	extractor := extract.New(time.Duration(cfg.Extract.TimeoutSeconds)*time.Second, cfg.Extract.UserAgent)

	srv := mcpserver.New(repo, extractor)
	logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}
