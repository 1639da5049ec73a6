package storage

import (
	"sort"

	"github.com/google/uuid"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It stores all data in maps and slices, making tests fast and isolated.
// The compare-and-set semantics of CommitMatchPair are preserved so the
// runner's race handling can be exercised without a database.
type MockRepository struct {
	transactions map[string]*BankTransaction
	obligations  map[string]*Obligation
	runs         map[int64]*ReconcileRun
	nextRunID    int64

	// Hooks for test assertions
	CommitMatchPairCalled    bool
	CommitMatchPairCalls     []MatchCommit
	AnnotateSuggestionCalled bool
	LastAnnotatedID          string
	StartRunCalled           bool
	CompleteRunCalled        bool
	FailRunCalled            bool

	// Error injection for testing error paths
	ListCandidatesErr      error
	ListPendingErr         error
	CommitMatchPairErr     error
	CommitMatchPairErrOnce error
	AnnotateSuggestionErr  error
	StartRunErr            error
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		transactions: make(map[string]*BankTransaction),
		obligations:  make(map[string]*Obligation),
		runs:         make(map[int64]*ReconcileRun),
		nextRunID:    1,
	}
}

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

// SaveTransaction saves a transaction to the in-memory map
func (m *MockRepository) SaveTransaction(tx *BankTransaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	// Deep copy to avoid test mutations
	copied := *tx
	m.transactions[tx.ID] = &copied
	return nil
}

// GetTransaction retrieves a transaction by ID
func (m *MockRepository) GetTransaction(id string) (*BankTransaction, error) {
	tx, ok := m.transactions[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *tx
	return &copied, nil
}

// ListCandidateTransactions returns pending positive transactions, newest first
func (m *MockRepository) ListCandidateTransactions(companyID string, limit int) ([]*BankTransaction, error) {
	if m.ListCandidatesErr != nil {
		return nil, m.ListCandidatesErr
	}

	var result []*BankTransaction
	for _, tx := range m.transactions {
		if tx.CompanyID != companyID || tx.ReviewStatus != ReviewPending || !tx.Amount.IsPositive() {
			continue
		}
		copied := *tx
		result = append(result, &copied)
	}

	sortTransactionsByDateDesc(result)

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListTransactions returns transactions matching the filters
func (m *MockRepository) ListTransactions(filters TransactionFilters) (*TransactionListResult, error) {
	var all []*BankTransaction
	for _, tx := range m.transactions {
		if filters.CompanyID != "" && tx.CompanyID != filters.CompanyID {
			continue
		}
		if filters.ReviewStatus != "" && string(tx.ReviewStatus) != filters.ReviewStatus {
			continue
		}
		copied := *tx
		all = append(all, &copied)
	}

	sortTransactionsByDateDesc(all)

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}

	total := len(all)
	start := filters.Offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return &TransactionListResult{
		Transactions: all[start:end],
		TotalCount:   total,
		Limit:        limit,
		Offset:       filters.Offset,
	}, nil
}

// CommitMatchPair mirrors the SQLite compare-and-set behavior in memory
func (m *MockRepository) CommitMatchPair(commit MatchCommit) error {
	m.CommitMatchPairCalled = true
	m.CommitMatchPairCalls = append(m.CommitMatchPairCalls, commit)

	if m.CommitMatchPairErrOnce != nil {
		err := m.CommitMatchPairErrOnce
		m.CommitMatchPairErrOnce = nil
		return err
	}
	if m.CommitMatchPairErr != nil {
		return m.CommitMatchPairErr
	}

	ob, ok := m.obligations[commit.ObligationID]
	if !ok || ob.Status != ObligationPending {
		return ErrObligationClaimed
	}

	tx, ok := m.transactions[commit.TransactionID]
	if !ok || tx.ReviewStatus != ReviewPending {
		return ErrTransactionNotPending
	}

	paymentDate := commit.PaymentDate
	ob.Status = ObligationPaid
	ob.PaymentDate = &paymentDate
	ob.PaymentMethod = "bank-transfer"

	score := commit.Score
	obligationID := commit.ObligationID
	matchedAt := commit.MatchedAt
	tx.ReviewStatus = ReviewMatched
	tx.MatchedObligationID = &obligationID
	tx.MatchScore = &score
	tx.MatchedBy = commit.MatchedBy
	tx.MatchedAt = &matchedAt
	tx.Notes = commit.Notes
	tx.Suggestion = nil
	tx.SuggestionJSON = ""

	return nil
}

// AnnotateSuggestion records a suggestion on a pending transaction
func (m *MockRepository) AnnotateSuggestion(transactionID string, score int, suggestion *MatchSuggestion) error {
	m.AnnotateSuggestionCalled = true
	m.LastAnnotatedID = transactionID

	if m.AnnotateSuggestionErr != nil {
		return m.AnnotateSuggestionErr
	}

	tx, ok := m.transactions[transactionID]
	if !ok || tx.ReviewStatus != ReviewPending {
		return ErrTransactionNotPending
	}

	tx.MatchScore = &score
	return tx.SetSuggestion(suggestion)
}

// ClearSuggestion removes a suggestion from a pending transaction
func (m *MockRepository) ClearSuggestion(transactionID string) error {
	tx, ok := m.transactions[transactionID]
	if !ok || tx.ReviewStatus != ReviewPending {
		return ErrTransactionNotPending
	}

	tx.MatchScore = nil
	return tx.SetSuggestion(nil)
}

// GetStats computes stats from the in-memory maps
func (m *MockRepository) GetStats() (*Stats, error) {
	stats := &Stats{}
	for _, tx := range m.transactions {
		switch tx.ReviewStatus {
		case ReviewPending:
			stats.PendingTransactions++
			if tx.Suggestion != nil {
				stats.SuggestedCount++
			}
		case ReviewMatched:
			stats.MatchedTransactions++
			stats.MatchedAmount = stats.MatchedAmount.Add(tx.Amount)
		}
	}
	for _, ob := range m.obligations {
		switch ob.Status {
		case ObligationPending:
			stats.PendingObligations++
		case ObligationPaid:
			stats.PaidObligations++
		}
	}
	return stats, nil
}

// SaveObligation saves an obligation to the in-memory map
func (m *MockRepository) SaveObligation(ob *Obligation) error {
	if ob.ID == "" {
		ob.ID = uuid.NewString()
	}
	copied := *ob
	m.obligations[ob.ID] = &copied
	return nil
}

// GetObligation retrieves an obligation by ID
func (m *MockRepository) GetObligation(id string) (*Obligation, error) {
	ob, ok := m.obligations[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *ob
	return &copied, nil
}

// ListPendingObligations returns pending obligations ordered by due date
func (m *MockRepository) ListPendingObligations(companyID string) ([]*Obligation, error) {
	if m.ListPendingErr != nil {
		return nil, m.ListPendingErr
	}

	var result []*Obligation
	for _, ob := range m.obligations {
		if ob.CompanyID != companyID || ob.Status != ObligationPending {
			continue
		}
		copied := *ob
		result = append(result, &copied)
	}

	sortObligationsByDueDate(result)
	return result, nil
}

// ListObligations returns obligations matching the filters
func (m *MockRepository) ListObligations(filters ObligationFilters) (*ObligationListResult, error) {
	var all []*Obligation
	for _, ob := range m.obligations {
		if filters.CompanyID != "" && ob.CompanyID != filters.CompanyID {
			continue
		}
		if filters.Status != "" && string(ob.Status) != filters.Status {
			continue
		}
		copied := *ob
		all = append(all, &copied)
	}

	sortObligationsByDueDate(all)

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}

	total := len(all)
	start := filters.Offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return &ObligationListResult{
		Obligations: all[start:end],
		TotalCount:  total,
		Limit:       limit,
		Offset:      filters.Offset,
	}, nil
}

// StartRun records a run start
func (m *MockRepository) StartRun(companyID string, batchLimit int) (int64, error) {
	m.StartRunCalled = true
	if m.StartRunErr != nil {
		return 0, m.StartRunErr
	}

	id := m.nextRunID
	m.nextRunID++
	m.runs[id] = &ReconcileRun{
		ID:         id,
		CompanyID:  companyID,
		BatchLimit: batchLimit,
		Status:     "running",
	}
	return id, nil
}

// CompleteRun records a run completion
func (m *MockRepository) CompleteRun(runID int64, processed, autoMatched, suggested int) error {
	m.CompleteRunCalled = true
	run, ok := m.runs[runID]
	if !ok {
		return ErrNotFound
	}
	run.Processed = processed
	run.AutoMatched = autoMatched
	run.Suggested = suggested
	run.Status = "completed"
	return nil
}

// FailRun marks a run as failed
func (m *MockRepository) FailRun(runID int64, reason string) error {
	m.FailRunCalled = true
	run, ok := m.runs[runID]
	if !ok {
		return ErrNotFound
	}
	run.Status = "failed"
	run.Error = reason
	return nil
}

// ListRuns returns recorded runs, newest first
func (m *MockRepository) ListRuns(limit int) ([]ReconcileRun, error) {
	if limit <= 0 {
		limit = 20
	}

	var runs []ReconcileRun
	for id := m.nextRunID - 1; id >= 1 && len(runs) < limit; id-- {
		if run, ok := m.runs[id]; ok {
			runs = append(runs, *run)
		}
	}
	return runs, nil
}

// GetRun retrieves a run by ID
func (m *MockRepository) GetRun(runID int64) (*ReconcileRun, error) {
	run, ok := m.runs[runID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *run
	return &copied, nil
}

// Same ordering as the SQLite queries: date DESC, id ASC
func sortTransactionsByDateDesc(txs []*BankTransaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.After(txs[j].Date)
		}
		return txs[i].ID < txs[j].ID
	})
}

// Same ordering as the SQLite query: due_date ASC, id ASC
func sortObligationsByDueDate(obs []*Obligation) {
	sort.SliceStable(obs, func(i, j int) bool {
		if !obs[i].DueDate.Equal(obs[j].DueDate) {
			return obs[i].DueDate.Before(obs[j].DueDate)
		}
		return obs[i].ID < obs[j].ID
	})
}
