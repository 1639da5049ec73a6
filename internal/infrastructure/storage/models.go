package storage

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ObligationStatus is the lifecycle state of a payment obligation.
type ObligationStatus string

const (
	ObligationPending   ObligationStatus = "pending"
	ObligationPaid      ObligationStatus = "paid"
	ObligationCancelled ObligationStatus = "cancelled"
)

// ReviewStatus is the classification state of an incoming bank transaction.
type ReviewStatus string

const (
	ReviewPending   ReviewStatus = "pending_review"
	ReviewMatched   ReviewStatus = "matched"
	ReviewDiscarded ReviewStatus = "discarded"
)

// Obligation is an outstanding amount owed by a party by a due date,
// typically a rent installment. Created by upstream billing; the
// reconciliation engine only ever flips pending -> paid.
type Obligation struct {
	ID             string           `json:"id"`
	CompanyID      string           `json:"company_id"`
	PartyName      string           `json:"party_name"`
	Amount         decimal.Decimal  `json:"amount"`
	DueDate        time.Time        `json:"due_date"`
	PeriodLabel    string           `json:"period_label,omitempty"`
	ReferenceLabel string           `json:"reference_label,omitempty"`
	Status         ObligationStatus `json:"status"`
	PaymentDate    *time.Time       `json:"payment_date,omitempty"`
	PaymentMethod  string           `json:"payment_method,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// BankTransaction is an incoming bank-feed record awaiting classification.
// A transaction carries either a committed match (MatchedObligationID) or a
// pending suggestion, never both.
type BankTransaction struct {
	ID                  string          `json:"id"`
	CompanyID           string          `json:"company_id"`
	Amount              decimal.Decimal `json:"amount"`
	Date                time.Time       `json:"date"`
	Description         string          `json:"description"`
	CounterpartyName    string          `json:"counterparty_name,omitempty"`
	ReviewStatus        ReviewStatus    `json:"review_status"`
	MatchScore          *int            `json:"match_score,omitempty"`
	MatchedObligationID *string         `json:"matched_obligation_id,omitempty"`
	MatchedBy           string          `json:"matched_by,omitempty"`
	MatchedAt           *time.Time      `json:"matched_at,omitempty"`
	Notes               string          `json:"notes,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`

	// Suggestion is the proposed-but-unapplied match, stored as JSON
	Suggestion     *MatchSuggestion `json:"suggestion,omitempty"`
	SuggestionJSON string           `json:"-"` // For DB storage
}

// MatchSuggestion is a proposed match surfaced for human confirmation.
// It carries enough context for a reviewer to decide without re-running
// the scorer.
type MatchSuggestion struct {
	ObligationID string          `json:"obligation_id"`
	Score        int             `json:"score"`
	PartyName    string          `json:"party_name"`
	Amount       decimal.Decimal `json:"amount"`
	DueDate      time.Time       `json:"due_date"`
}

// SetSuggestion serializes the suggestion to JSON for storage
func (t *BankTransaction) SetSuggestion(s *MatchSuggestion) error {
	t.Suggestion = s
	if s == nil {
		t.SuggestionJSON = ""
		return nil
	}

	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	t.SuggestionJSON = string(data)
	return nil
}

// decodeSuggestion deserializes the stored JSON payload
func (t *BankTransaction) decodeSuggestion() error {
	if t.SuggestionJSON == "" {
		t.Suggestion = nil
		return nil
	}

	var s MatchSuggestion
	if err := json.Unmarshal([]byte(t.SuggestionJSON), &s); err != nil {
		return err
	}
	t.Suggestion = &s
	return nil
}

// MatchCommit carries everything needed to atomically pair a transaction
// with an obligation. Both writes succeed or neither does.
type MatchCommit struct {
	TransactionID string
	ObligationID  string
	Score         int
	PaymentDate   time.Time
	MatchedBy     string
	MatchedAt     time.Time
	Notes         string
}

// ReconcileRun is one recorded batch run
type ReconcileRun struct {
	ID          int64  `json:"id"`
	CompanyID   string `json:"company_id"`
	StartedAt   string `json:"started_at"`
	CompletedAt string `json:"completed_at,omitempty"`
	BatchLimit  int    `json:"batch_limit"`
	Processed   int    `json:"processed"`
	AutoMatched int    `json:"auto_matched"`
	Suggested   int    `json:"suggested"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
}

// TransactionFilters defines filters for listing transactions
type TransactionFilters struct {
	CompanyID    string // Filter by company (empty = all)
	ReviewStatus string // Filter by review status (empty = all)
	Limit        int    // Max results (0 = default 50)
	Offset       int    // Pagination offset
}

// TransactionListResult contains paginated transaction results
type TransactionListResult struct {
	Transactions []*BankTransaction `json:"transactions"`
	TotalCount   int                `json:"total_count"`
	Limit        int                `json:"limit"`
	Offset       int                `json:"offset"`
}

// ObligationFilters defines filters for listing obligations
type ObligationFilters struct {
	CompanyID string
	Status    string
	Limit     int
	Offset    int
}

// ObligationListResult contains paginated obligation results
type ObligationListResult struct {
	Obligations []*Obligation `json:"obligations"`
	TotalCount  int           `json:"total_count"`
	Limit       int           `json:"limit"`
	Offset      int           `json:"offset"`
}

// Stats contains aggregate reconciliation statistics
type Stats struct {
	PendingTransactions int             `json:"pending_transactions"`
	MatchedTransactions int             `json:"matched_transactions"`
	SuggestedCount      int             `json:"suggested_count"`
	PendingObligations  int             `json:"pending_obligations"`
	PaidObligations     int             `json:"paid_obligations"`
	MatchedAmount       decimal.Decimal `json:"matched_amount"`
}
