package reconcile

import (
	"github.com/shopspring/decimal"
)

// Config holds the decision thresholds and batch limit for a run.
// The values are configuration, not constants: tests and deployments
// override them through the constructor.
type Config struct {
	// AutoMatchThreshold is the minimum score for committing a match
	// without human review.
	AutoMatchThreshold int

	// SuggestionThreshold is the minimum score for recording a
	// suggestion. Scores below it leave the transaction untouched.
	SuggestionThreshold int

	// BatchLimit caps how many candidate transactions one run loads.
	BatchLimit int
}

// DefaultConfig returns the production thresholds
func DefaultConfig() Config {
	return Config{
		AutoMatchThreshold:  70,
		SuggestionThreshold: 40,
		BatchLimit:          500,
	}
}

// MatchDetail describes one decision taken during a run
type MatchDetail struct {
	TransactionID  string          `json:"transaction_id"`
	ObligationID   string          `json:"obligation_id"`
	Amount         decimal.Decimal `json:"amount"`
	PartyName      string          `json:"party_name"`
	Score          int             `json:"score"`
	WasAutoApplied bool            `json:"was_auto_applied"`
}

// Summary aggregates the outcome of one batch run
type Summary struct {
	AutoMatched    int           `json:"auto_matched"`
	Suggested      int           `json:"suggested"`
	TotalProcessed int           `json:"total_processed"`
	Details        []MatchDetail `json:"details"`
	Message        string        `json:"message,omitempty"`
}
