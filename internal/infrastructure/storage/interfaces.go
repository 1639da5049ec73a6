package storage

import "errors"

// Sentinel errors returned by Repository implementations.
var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrObligationClaimed is returned by CommitMatchPair when the target
	// obligation is no longer pending at commit time. A concurrent run, or a
	// manual payment, got there first; the caller treats it as "no match".
	ErrObligationClaimed = errors.New("obligation is no longer pending")

	// ErrTransactionNotPending is returned when the transaction side of a
	// commit or annotation is no longer in pending_review.
	ErrTransactionNotPending = errors.New("transaction is no longer pending review")
)

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, PostgreSQL, etc.)
// and makes testing with mocks straightforward.
type Repository interface {
	TransactionRepository
	ObligationRepository
	RunRepository
	Close() error
}

// TransactionRepository handles bank transaction operations
type TransactionRepository interface {
	// SaveTransaction inserts or updates a bank transaction
	SaveTransaction(tx *BankTransaction) error

	// GetTransaction retrieves a transaction by ID
	GetTransaction(id string) (*BankTransaction, error)

	// ListCandidateTransactions returns reconciliation candidates for a
	// company: positive amount, pending_review, most recent first, capped
	// at limit.
	ListCandidateTransactions(companyID string, limit int) ([]*BankTransaction, error)

	// ListTransactions returns transactions matching the given filters with pagination
	ListTransactions(filters TransactionFilters) (*TransactionListResult, error)

	// CommitMatchPair atomically marks the transaction matched and the
	// obligation paid. The obligation update is a compare-and-set on
	// status = pending; ErrObligationClaimed is returned (and nothing is
	// written) if it lost the race.
	CommitMatchPair(commit MatchCommit) error

	// AnnotateSuggestion records a score and suggestion payload on a
	// pending transaction without touching any obligation.
	AnnotateSuggestion(transactionID string, score int, suggestion *MatchSuggestion) error

	// ClearSuggestion removes a previously recorded suggestion
	ClearSuggestion(transactionID string) error

	// GetStats returns aggregate statistics
	GetStats() (*Stats, error)
}

// ObligationRepository handles payment obligation operations
type ObligationRepository interface {
	// SaveObligation inserts or updates an obligation
	SaveObligation(ob *Obligation) error

	// GetObligation retrieves an obligation by ID
	GetObligation(id string) (*Obligation, error)

	// ListPendingObligations returns all pending obligations for a company
	ListPendingObligations(companyID string) ([]*Obligation, error)

	// ListObligations returns obligations matching the given filters with pagination
	ListObligations(filters ObligationFilters) (*ObligationListResult, error)
}

// RunRepository handles reconciliation run tracking
type RunRepository interface {
	// StartRun records the start of a reconciliation run and returns the run ID
	StartRun(companyID string, batchLimit int) (int64, error)

	// CompleteRun records the completion of a run
	CompleteRun(runID int64, processed, autoMatched, suggested int) error

	// FailRun marks a run as failed with a reason
	FailRun(runID int64, reason string) error

	// ListRuns returns recent runs
	ListRuns(limit int) ([]ReconcileRun, error)

	// GetRun retrieves a run by ID
	GetRun(runID int64) (*ReconcileRun, error)
}
