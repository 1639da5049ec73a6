// Package reconcile orchestrates batch reconciliation of incoming bank
// transactions against outstanding payment obligations.
//
// A run is a single synchronous greedy pass: each candidate transaction, most
// recent first, is scored against every obligation not yet claimed in this
// run; the best pair is then auto-committed, recorded as a suggestion, or
// dropped depending on the configured thresholds. An obligation claimed by an
// earlier transaction is unavailable for the rest of the run, so no
// obligation is ever satisfied twice.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rentdesk/rentdesk-backend/internal/domain/matcher"
	"github.com/rentdesk/rentdesk-backend/internal/infrastructure/storage"
)

// MatchedByAuto is the audit identity recorded on auto-committed matches
const MatchedByAuto = "auto-reconciliation"

// ErrCompanyRequired is returned when RunBatch is called without a company.
// It is a client error; nothing has been loaded or written.
var ErrCompanyRequired = errors.New("company id is required")

// Runner executes reconciliation batches
type Runner struct {
	repo   storage.Repository
	scorer matcher.Scorer
	config Config
	logger *slog.Logger
}

// NewRunner creates a runner with the given scorer and thresholds
func NewRunner(repo storage.Repository, scorer matcher.Scorer, config Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		repo:   repo,
		scorer: scorer,
		config: config,
		logger: logger,
	}
}

// RunBatch loads the candidate sets for a company and processes them in one
// greedy pass. Per-pair failures (a lost compare-and-set, a scorer fault) are
// skipped; only failures that prevent loading the candidate sets abort the
// run.
func (r *Runner) RunBatch(ctx context.Context, companyID string) (*Summary, error) {
	if companyID == "" {
		return nil, ErrCompanyRequired
	}

	runID, err := r.repo.StartRun(companyID, r.config.BatchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to record run start: %w", err)
	}

	transactions, err := r.repo.ListCandidateTransactions(companyID, r.config.BatchLimit)
	if err != nil {
		_ = r.repo.FailRun(runID, err.Error())
		return nil, fmt.Errorf("failed to load candidate transactions: %w", err)
	}

	summary := &Summary{Details: []MatchDetail{}}

	if len(transactions) == 0 {
		summary.Message = "no candidate transactions to reconcile"
		if err := r.repo.CompleteRun(runID, 0, 0, 0); err != nil {
			r.logger.Warn("failed to record run completion", "run_id", runID, "error", err)
		}
		return summary, nil
	}

	obligations, err := r.repo.ListPendingObligations(companyID)
	if err != nil {
		_ = r.repo.FailRun(runID, err.Error())
		return nil, fmt.Errorf("failed to load pending obligations: %w", err)
	}

	r.logger.Info("starting reconciliation batch",
		"company_id", companyID,
		"transactions", len(transactions),
		"obligations", len(obligations),
	)

	// Obligations claimed earlier in this run; at most one match per
	// obligation per run.
	claimed := make(map[string]bool)

	for _, tx := range transactions {
		summary.TotalProcessed++

		best, bestScore, bestRationale := r.findBest(ctx, tx, obligations, claimed)
		if best == nil {
			continue
		}

		switch {
		case bestScore >= r.config.AutoMatchThreshold:
			if r.commitMatch(tx, best, bestScore, bestRationale, claimed) {
				summary.AutoMatched++
				summary.Details = append(summary.Details, MatchDetail{
					TransactionID:  tx.ID,
					ObligationID:   best.ID,
					Amount:         tx.Amount,
					PartyName:      best.PartyName,
					Score:          bestScore,
					WasAutoApplied: true,
				})
			}

		case bestScore >= r.config.SuggestionThreshold:
			if r.annotateSuggestion(tx, best, bestScore) {
				summary.Suggested++
				summary.Details = append(summary.Details, MatchDetail{
					TransactionID:  tx.ID,
					ObligationID:   best.ID,
					Amount:         tx.Amount,
					PartyName:      best.PartyName,
					Score:          bestScore,
					WasAutoApplied: false,
				})
			}
		}
		// Below the suggestion threshold both records stay untouched
	}

	if err := r.repo.CompleteRun(runID, summary.TotalProcessed, summary.AutoMatched, summary.Suggested); err != nil {
		r.logger.Warn("failed to record run completion", "run_id", runID, "error", err)
	}

	r.logger.Info("reconciliation batch complete",
		"company_id", companyID,
		"processed", summary.TotalProcessed,
		"auto_matched", summary.AutoMatched,
		"suggested", summary.Suggested,
	)

	return summary, nil
}

// findBest scores the transaction against every unclaimed obligation and
// returns the highest-scoring one. Ties keep the first obligation evaluated
// (stable by load order). A scorer fault on one pair skips that pair only.
func (r *Runner) findBest(
	ctx context.Context,
	tx *storage.BankTransaction,
	obligations []*storage.Obligation,
	claimed map[string]bool,
) (*storage.Obligation, int, matcher.Rationale) {
	var (
		best          *storage.Obligation
		bestScore     int
		bestRationale matcher.Rationale
	)

	for _, ob := range obligations {
		if claimed[ob.ID] {
			continue
		}

		score, rationale, err := r.scorer.Score(ctx, tx, ob)
		if err != nil {
			r.logger.Warn("scorer failed for pair",
				"transaction_id", tx.ID,
				"obligation_id", ob.ID,
				"error", err,
			)
			continue
		}
		if rationale.Disqualified || score <= 0 {
			continue
		}

		if score > bestScore {
			best = ob
			bestScore = score
			bestRationale = rationale
		}
	}

	return best, bestScore, bestRationale
}

// commitMatch performs the atomic pair commit. Losing the compare-and-set is
// not a batch failure: the obligation is treated as claimed and the
// transaction stays pending for a later run.
func (r *Runner) commitMatch(
	tx *storage.BankTransaction,
	ob *storage.Obligation,
	score int,
	rationale matcher.Rationale,
	claimed map[string]bool,
) bool {
	err := r.repo.CommitMatchPair(storage.MatchCommit{
		TransactionID: tx.ID,
		ObligationID:  ob.ID,
		Score:         score,
		PaymentDate:   tx.Date,
		MatchedBy:     MatchedByAuto,
		MatchedAt:     time.Now().UTC(),
		Notes:         rationale.Describe(ob.PartyName, score),
	})
	if err != nil {
		if errors.Is(err, storage.ErrObligationClaimed) {
			// Lost the race to a concurrent run or a manual payment
			claimed[ob.ID] = true
			r.logger.Warn("obligation claimed concurrently, skipping",
				"transaction_id", tx.ID,
				"obligation_id", ob.ID,
			)
			return false
		}
		r.logger.Error("failed to commit match pair",
			"transaction_id", tx.ID,
			"obligation_id", ob.ID,
			"error", err,
		)
		return false
	}

	claimed[ob.ID] = true

	r.logger.Info("auto-reconciled transaction",
		"transaction_id", tx.ID,
		"obligation_id", ob.ID,
		"party", ob.PartyName,
		"score", score,
	)

	return true
}

// annotateSuggestion records a suggestion on the transaction. The obligation
// is not mutated and not claimed; another transaction may still match it.
func (r *Runner) annotateSuggestion(tx *storage.BankTransaction, ob *storage.Obligation, score int) bool {
	err := r.repo.AnnotateSuggestion(tx.ID, score, &storage.MatchSuggestion{
		ObligationID: ob.ID,
		Score:        score,
		PartyName:    ob.PartyName,
		Amount:       ob.Amount,
		DueDate:      ob.DueDate,
	})
	if err != nil {
		r.logger.Warn("failed to annotate suggestion",
			"transaction_id", tx.ID,
			"obligation_id", ob.ID,
			"error", err,
		)
		return false
	}

	r.logger.Debug("recorded match suggestion",
		"transaction_id", tx.ID,
		"obligation_id", ob.ID,
		"score", score,
	)

	return true
}
