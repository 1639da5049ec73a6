package matcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/rentdesk/rentdesk-backend/internal/infrastructure/storage"
)

// Scorer computes a compatibility score between one bank transaction and one
// payment obligation. Implementations must be stateless and side-effect free;
// the runner is agnostic to which one is active.
type Scorer interface {
	Score(ctx context.Context, tx *storage.BankTransaction, ob *storage.Obligation) (int, Rationale, error)
}

// Rationale explains how a score was assembled. It is persisted (rendered as
// the transaction notes) so a reviewer can see why a match was made without
// re-running the scorer.
type Rationale struct {
	AmountPoints   int      `json:"amount_points"`
	DatePoints     int      `json:"date_points"`
	IdentityPoints int      `json:"identity_points"`
	BonusPoints    int      `json:"bonus_points"`
	Disqualified   bool     `json:"disqualified"`
	Reasons        []string `json:"reasons,omitempty"`
}

// Describe renders the human-readable audit line stored on a committed match.
// It always carries the party name and the resolved score.
func (r Rationale) Describe(partyName string, score int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Matched to %s (score %d)", partyName, score)
	if len(r.Reasons) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(r.Reasons, "; "))
	}
	return b.String()
}
