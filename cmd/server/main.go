// WhatsFlow - stateful message dispatch service for a WhatsApp gateway.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/solvia-digital/whatsflow/internal/ai"
	"github.com/solvia-digital/whatsflow/internal/api"
	"github.com/solvia-digital/whatsflow/internal/broadcast"
	"github.com/solvia-digital/whatsflow/internal/catalog"
	"github.com/solvia-digital/whatsflow/internal/config"
	"github.com/solvia-digital/whatsflow/internal/dispatch"
	"github.com/solvia-digital/whatsflow/internal/flows"
	"github.com/solvia-digital/whatsflow/internal/middleware"
	"github.com/solvia-digital/whatsflow/internal/session"
	"github.com/solvia-digital/whatsflow/internal/store"
	"github.com/solvia-digital/whatsflow/internal/transport"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "ai_enabled", cfg.AIEnabled())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Initialize services.
	flowSource := flows.NewSheetClient(cfg.FlowsURL, cfg.FlowsCacheTTL)
	tracker := session.NewTracker(cfg.SessionTimeout, cfg.ResponseTimeout, nil)
	sessions := session.NewMemoryStore()
	blacklist := session.NewBlacklist()
	gateway := transport.NewGatewayClient(cfg.GatewayURL)

	var responder ai.Responder
	if cfg.AIEnabled() {
		responder = ai.NewClient(ai.Config{
			BaseURL:      cfg.AIBaseURL,
			APIKey:       cfg.AIAPIKey,
			Model:        cfg.AIModel,
			HistoryLimit: cfg.AIHistory,
		}, flowSource, repo)
		slog.Info("AI fallback enabled", "model", cfg.AIModel)
	} else {
		slog.Info("AI fallback disabled (AI_API_KEY not set)")
	}

	pipeline := dispatch.NewPipeline(dispatch.Deps{
		Tracker:   tracker,
		Sessions:  sessions,
		Blacklist: blacklist,
		Catalog:   catalog.Default(),
		Flows:     flowSource,
		Responder: responder,
		Repo:      repo,
		Transport: gateway,
	})

	broadcasts := broadcast.NewService(broadcast.Deps{
		Flows:     flowSource,
		Tracker:   tracker,
		Blacklist: blacklist,
		Repo:      repo,
		Transport: gateway,
	}, cfg.BroadcastInterval)

	// Initialize handlers.
	adminHandler := api.NewAdminHandler(gateway, flowSource, blacklist, broadcasts)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))

	// Admin routes behind token auth.
	r.Group(func(r chi.Router) {
		r.Use(middleware.AdminAuth(cfg.AdminToken))
		adminHandler.RegisterRoutes(r)
	})

	// Create server.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start background workers.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go gateway.Run(ctx, pipeline.Handle)

	broadcasts.Start(ctx)
	store.StartCleanupWorker(ctx, repo, cfg.HistoryRetention, cfg.CleanupInterval)
	slog.Info("Background workers started",
		"broadcast_interval", cfg.BroadcastInterval,
		"cleanup_interval", cfg.CleanupInterval,
		"history_retention", cfg.HistoryRetention)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	broadcasts.Stop()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
