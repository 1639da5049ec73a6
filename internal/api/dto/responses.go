package dto

import "time"

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// NewHealthResponse creates a health response with current timestamp.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// MessageResponse is a simple confirmation payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// SuggestionResponse represents a pending match suggestion.
type SuggestionResponse struct {
	ObligationID string `json:"obligation_id"`
	Score        int    `json:"score"`
	PartyName    string `json:"party_name"`
	Amount       string `json:"amount"`
	DueDate      string `json:"due_date"`
}

// TransactionResponse represents a bank transaction in API responses.
// Amounts are decimal strings; the API never exposes floats for money.
type TransactionResponse struct {
	ID                  string              `json:"id"`
	CompanyID           string              `json:"company_id"`
	Amount              string              `json:"amount"`
	Date                string              `json:"date"`
	Description         string              `json:"description"`
	CounterpartyName    string              `json:"counterparty_name,omitempty"`
	ReviewStatus        string              `json:"review_status"`
	MatchScore          *int                `json:"match_score,omitempty"`
	MatchedObligationID *string             `json:"matched_obligation_id,omitempty"`
	MatchedBy           string              `json:"matched_by,omitempty"`
	MatchedAt           string              `json:"matched_at,omitempty"`
	Notes               string              `json:"notes,omitempty"`
	Suggestion          *SuggestionResponse `json:"suggestion,omitempty"`
}

// TransactionListResponse is returned when listing transactions.
type TransactionListResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	TotalCount   int                   `json:"total_count"`
	Limit        int                   `json:"limit"`
	Offset       int                   `json:"offset"`
}

// ObligationResponse represents a payment obligation in API responses.
type ObligationResponse struct {
	ID             string `json:"id"`
	CompanyID      string `json:"company_id"`
	PartyName      string `json:"party_name"`
	Amount         string `json:"amount"`
	DueDate        string `json:"due_date"`
	PeriodLabel    string `json:"period_label,omitempty"`
	ReferenceLabel string `json:"reference_label,omitempty"`
	Status         string `json:"status"`
	PaymentDate    string `json:"payment_date,omitempty"`
	PaymentMethod  string `json:"payment_method,omitempty"`
}

// ObligationListResponse is returned when listing obligations.
type ObligationListResponse struct {
	Obligations []ObligationResponse `json:"obligations"`
	TotalCount  int                  `json:"total_count"`
	Limit       int                  `json:"limit"`
	Offset      int                  `json:"offset"`
}

// RunResponse represents a reconciliation run in API responses.
type RunResponse struct {
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

// RunListResponse is returned when listing runs.
type RunListResponse struct {
	Runs  []RunResponse `json:"runs"`
	Count int           `json:"count"`
}

// MatchDetailResponse describes one decision taken during a run.
type MatchDetailResponse struct {
	TransactionID  string `json:"transaction_id"`
	ObligationID   string `json:"obligation_id"`
	Amount         string `json:"amount"`
	PartyName      string `json:"party_name"`
	Score          int    `json:"score"`
	WasAutoApplied bool   `json:"was_auto_applied"`
}

// ReconcileSummaryResponse is returned after a batch run.
type ReconcileSummaryResponse struct {
	AutoMatched    int                   `json:"auto_matched"`
	Suggested      int                   `json:"suggested"`
	TotalProcessed int                   `json:"total_processed"`
	Details        []MatchDetailResponse `json:"details"`
	Message        string                `json:"message,omitempty"`
}

// StatsResponse is returned by the stats endpoint.
type StatsResponse struct {
	PendingTransactions int    `json:"pending_transactions"`
	MatchedTransactions int    `json:"matched_transactions"`
	SuggestedCount      int    `json:"suggested_count"`
	PendingObligations  int    `json:"pending_obligations"`
	PaidObligations     int    `json:"paid_obligations"`
	MatchedAmount       string `json:"matched_amount"`
}
