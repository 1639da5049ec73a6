package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rentdesk/rentdesk-backend/internal/api"
	"github.com/rentdesk/rentdesk-backend/internal/application/reconcile"
	"github.com/rentdesk/rentdesk-backend/internal/application/service"
	"github.com/rentdesk/rentdesk-backend/internal/domain/matcher"
	"github.com/rentdesk/rentdesk-backend/internal/infrastructure/config"
	"github.com/rentdesk/rentdesk-backend/internal/infrastructure/logging"
	"github.com/rentdesk/rentdesk-backend/internal/infrastructure/storage"
)

func main() {
	configFile := flag.String("config", "config.yaml", "Configuration file path")
	flag.Parse()

	// Optional .env for local development
	_ = godotenv.Load()

	cfg := config.LoadOrEnvWithPath(*configFile)

	logger := logging.NewLoggerWithSystem(cfg.Observability.Logging, "api")

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	scorer, err := buildScorer(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize scorer", "error", err)
		os.Exit(1)
	}

	runner := reconcile.NewRunner(store, scorer, reconcile.Config{
		AutoMatchThreshold:  cfg.Reconciliation.AutoMatchThreshold,
		SuggestionThreshold: cfg.Reconciliation.SuggestionThreshold,
		BatchLimit:          cfg.Reconciliation.BatchLimit,
	}, logger)

	reconcileService := service.NewReconcileService(store, runner, logger)

	server := api.NewServer(api.Config{
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, store, reconcileService, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logger.Info("received signal, shutting down", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown failed", "error", err)
			os.Exit(1)
		}
	}
}

// buildScorer selects the configured scoring backend. The rule scorer is
// the default; the Gemini scorer needs an API key.
func buildScorer(cfg *config.Config, logger *slog.Logger) (matcher.Scorer, error) {
	switch cfg.Reconciliation.Scorer {
	case "gemini":
		logger.Info("using Gemini scorer", "model", cfg.Gemini.Model)
		return matcher.NewGeminiScorer(context.Background(), cfg.Gemini.APIKey, cfg.Gemini.Model)
	default:
		return matcher.NewRuleScorer(), nil
	}
}
