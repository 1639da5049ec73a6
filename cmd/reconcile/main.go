// Command reconcile runs one reconciliation batch from the command line.
// It is intended for cron jobs and manual backfills.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/rentdesk/rentdesk-backend/internal/application/reconcile"
	"github.com/rentdesk/rentdesk-backend/internal/domain/matcher"
	"github.com/rentdesk/rentdesk-backend/internal/infrastructure/config"
	"github.com/rentdesk/rentdesk-backend/internal/infrastructure/logging"
	"github.com/rentdesk/rentdesk-backend/internal/infrastructure/storage"
)

func main() {
	var (
		configFile = flag.String("config", "config.yaml", "Configuration file path")
		companyID  = flag.String("company", "", "Company to reconcile (required)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	_ = godotenv.Load()

	if *companyID == "" {
		fmt.Fprintln(os.Stderr, "usage: reconcile -company <company-id> [-config config.yaml]")
		os.Exit(2)
	}

	cfg := config.LoadOrEnvWithPath(*configFile)
	if *verbose {
		cfg.Observability.Logging.Level = "debug"
	}

	logger := logging.NewLoggerWithSystem(cfg.Observability.Logging, "reconcile")

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	var scorer matcher.Scorer = matcher.NewRuleScorer()
	if cfg.Reconciliation.Scorer == "gemini" {
		scorer, err = matcher.NewGeminiScorer(context.Background(), cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			logger.Error("failed to initialize Gemini scorer", "error", err)
			os.Exit(1)
		}
	}

	runner := reconcile.NewRunner(store, scorer, reconcile.Config{
		AutoMatchThreshold:  cfg.Reconciliation.AutoMatchThreshold,
		SuggestionThreshold: cfg.Reconciliation.SuggestionThreshold,
		BatchLimit:          cfg.Reconciliation.BatchLimit,
	}, logger)

	summary, err := runner.RunBatch(context.Background(), *companyID)
	if err != nil {
		logger.Error("reconciliation failed", "company_id", *companyID, "error", err)
		os.Exit(1)
	}

	fmt.Printf("processed %d transactions: %d auto-matched, %d suggested\n",
		summary.TotalProcessed, summary.AutoMatched, summary.Suggested)
	for _, d := range summary.Details {
		action := "suggested"
		if d.WasAutoApplied {
			action = "matched"
		}
		fmt.Printf("  %s %s -> %s (%s, score %d)\n",
			action, d.TransactionID, d.ObligationID, d.PartyName, d.Score)
	}
}
