// Package service coordinates reconciliation operations on behalf of the
// API and CLI entrypoints.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rentdesk/rentdesk-backend/internal/application/reconcile"
	"github.com/rentdesk/rentdesk-backend/internal/infrastructure/storage"
)

// ErrRunInProgress is returned when a run for the same company is already
// executing in this process.
var ErrRunInProgress = errors.New("reconciliation already running for company")

// ErrNoSuggestion is returned when accepting or dismissing a transaction
// that carries no suggestion.
var ErrNoSuggestion = errors.New("transaction has no suggestion")

// ReconcileService serializes runs per company and exposes the suggestion
// review operations. Runs are synchronous; the per-company lock only guards
// against two triggers for the same company interleaving inside one process.
// Across processes the storage compare-and-set is the safety net.
type ReconcileService struct {
	repo   storage.Repository
	runner *reconcile.Runner
	logger *slog.Logger

	companyLocks map[string]*sync.Mutex
	locksMutex   sync.Mutex
	running      map[string]bool
	runningMutex sync.Mutex
}

// NewReconcileService creates a new reconcile service
func NewReconcileService(repo storage.Repository, runner *reconcile.Runner, logger *slog.Logger) *ReconcileService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileService{
		repo:         repo,
		runner:       runner,
		logger:       logger,
		companyLocks: make(map[string]*sync.Mutex),
		running:      make(map[string]bool),
	}
}

// Run executes one synchronous batch for a company. A second trigger for the
// same company while one is executing returns ErrRunInProgress instead of
// queueing.
func (s *ReconcileService) Run(ctx context.Context, companyID string) (*reconcile.Summary, error) {
	if companyID == "" {
		return nil, reconcile.ErrCompanyRequired
	}

	if !s.tryMarkRunning(companyID) {
		return nil, fmt.Errorf("%w: %s", ErrRunInProgress, companyID)
	}
	defer s.unmarkRunning(companyID)

	lock := s.companyLock(companyID)
	lock.Lock()
	defer lock.Unlock()

	return s.runner.RunBatch(ctx, companyID)
}

// AcceptSuggestion commits a previously suggested pair on behalf of a
// reviewer. It goes through the same compare-and-set pair commit as the
// automatic path, so a stale suggestion (obligation paid meanwhile) fails
// cleanly instead of double-satisfying the obligation.
func (s *ReconcileService) AcceptSuggestion(_ context.Context, transactionID, reviewer string) (*storage.BankTransaction, error) {
	if reviewer == "" {
		return nil, errors.New("reviewer identity is required")
	}

	tx, err := s.repo.GetTransaction(transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Suggestion == nil {
		return nil, ErrNoSuggestion
	}

	sug := tx.Suggestion
	err = s.repo.CommitMatchPair(storage.MatchCommit{
		TransactionID: tx.ID,
		ObligationID:  sug.ObligationID,
		Score:         sug.Score,
		PaymentDate:   tx.Date,
		MatchedBy:     reviewer,
		MatchedAt:     time.Now().UTC(),
		Notes:         fmt.Sprintf("Matched to %s (score %d): suggestion accepted by %s", sug.PartyName, sug.Score, reviewer),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("suggestion accepted",
		"transaction_id", tx.ID,
		"obligation_id", sug.ObligationID,
		"reviewer", reviewer,
	)

	return s.repo.GetTransaction(transactionID)
}

// DismissSuggestion clears a suggestion, leaving the transaction pending
// with no annotation.
func (s *ReconcileService) DismissSuggestion(_ context.Context, transactionID string) (*storage.BankTransaction, error) {
	tx, err := s.repo.GetTransaction(transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Suggestion == nil {
		return nil, ErrNoSuggestion
	}

	if err := s.repo.ClearSuggestion(transactionID); err != nil {
		return nil, err
	}

	s.logger.Info("suggestion dismissed", "transaction_id", transactionID)

	return s.repo.GetTransaction(transactionID)
}

// companyLock returns (creating if needed) the mutex for a company
func (s *ReconcileService) companyLock(companyID string) *sync.Mutex {
	s.locksMutex.Lock()
	defer s.locksMutex.Unlock()

	lock, ok := s.companyLocks[companyID]
	if !ok {
		lock = &sync.Mutex{}
		s.companyLocks[companyID] = lock
	}
	return lock
}

func (s *ReconcileService) tryMarkRunning(companyID string) bool {
	s.runningMutex.Lock()
	defer s.runningMutex.Unlock()

	if s.running[companyID] {
		return false
	}
	s.running[companyID] = true
	return true
}

func (s *ReconcileService) unmarkRunning(companyID string) {
	s.runningMutex.Lock()
	defer s.runningMutex.Unlock()
	delete(s.running, companyID)
}
