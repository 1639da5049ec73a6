// Package matcher provides scoring logic for pairing incoming bank
// transactions with outstanding payment obligations.
//
// The rule-based scorer is additive and capped per factor:
//   - Amount compatibility (max 50): within 1% of the obligation amount
//     scores 50, within 5% scores 25, anything further disqualifies the
//     pair outright. Amount is a hard gate, not a weighted signal.
//   - Date proximity (max 25): <=3 days scores 25, <=7 scores 15,
//     <=15 scores 5.
//   - Identity (max 25): the full normalized party name in the bank
//     narrative scores 25, any name token longer than two characters
//     scores 10.
//   - Reference bonuses (uncapped): +10 for the period label, +5 for the
//     unit/contract reference. These can push the total above 100 so that
//     unambiguous structured codes outweigh a weak narrative.
//
// Example usage:
//
//	s := matcher.NewRuleScorer()
//	score, rationale, _ := s.Score(ctx, tx, obligation)
package matcher

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"github.com/rentdesk/rentdesk-backend/internal/infrastructure/storage"
)

// Per-factor point values
const (
	amountExactPoints    = 50 // within 1% of the obligation amount
	amountClosePoints    = 25 // within 5%
	dateNearPoints       = 25 // <= 3 days
	dateClosePoints      = 15 // <= 7 days
	dateFarPoints        = 5  // <= 15 days
	identityFullPoints   = 25 // full party name in the narrative
	identityTokenPoints  = 10 // a single name token in the narrative
	periodBonusPoints    = 10
	referenceBonusPoints = 5
)

var (
	onePercent  = decimal.New(1, -2) // 0.01
	fivePercent = decimal.New(5, -2) // 0.05
)

// RuleScorer is the deterministic rule-based Scorer implementation.
type RuleScorer struct{}

// Compile-time check that RuleScorer implements Scorer
var _ Scorer = (*RuleScorer)(nil)

// NewRuleScorer creates a new rule-based scorer
func NewRuleScorer() *RuleScorer {
	return &RuleScorer{}
}

// Score computes the additive score for one (transaction, obligation) pair.
// A disqualified pair scores 0 and reports Disqualified in the rationale.
func (s *RuleScorer) Score(_ context.Context, tx *storage.BankTransaction, ob *storage.Obligation) (int, Rationale, error) {
	r := Rationale{}

	// Amount is the hard gate: beyond 5% the pair is out, regardless of
	// date or name alignment.
	diff := tx.Amount.Sub(ob.Amount).Abs()
	tolerance1 := ob.Amount.Mul(onePercent)
	tolerance5 := ob.Amount.Mul(fivePercent)

	switch {
	case diff.LessThanOrEqual(tolerance1):
		r.AmountPoints = amountExactPoints
		r.Reasons = append(r.Reasons, fmt.Sprintf("amount %s within 1%% of %s", tx.Amount, ob.Amount))
	case diff.LessThanOrEqual(tolerance5):
		r.AmountPoints = amountClosePoints
		r.Reasons = append(r.Reasons, fmt.Sprintf("amount %s within 5%% of %s", tx.Amount, ob.Amount))
	default:
		r.Disqualified = true
		return 0, r, nil
	}

	// Date proximity
	days := math.Abs(tx.Date.Sub(ob.DueDate).Hours() / 24)
	switch {
	case days <= 3:
		r.DatePoints = dateNearPoints
	case days <= 7:
		r.DatePoints = dateClosePoints
	case days <= 15:
		r.DatePoints = dateFarPoints
	}
	if r.DatePoints > 0 {
		r.Reasons = append(r.Reasons, fmt.Sprintf("due date within %d days", int(days)))
	}

	// Identity: party name against the combined bank narrative
	haystack := normalizeText(tx.Description + " " + tx.CounterpartyName)
	name := normalizeText(ob.PartyName)
	if name != "" && strings.Contains(haystack, name) {
		r.IdentityPoints = identityFullPoints
		r.Reasons = append(r.Reasons, "full party name in narrative")
	} else if token := firstTokenMatch(name, haystack); token != "" {
		r.IdentityPoints = identityTokenPoints
		r.Reasons = append(r.Reasons, fmt.Sprintf("name token %q in narrative", token))
	}

	// Structured reference bonuses, additive beyond the 100-point scale
	if ob.PeriodLabel != "" && strings.Contains(strings.ToLower(tx.Description), strings.ToLower(ob.PeriodLabel)) {
		r.BonusPoints += periodBonusPoints
		r.Reasons = append(r.Reasons, fmt.Sprintf("period %q referenced", ob.PeriodLabel))
	}
	if ob.ReferenceLabel != "" && strings.Contains(tx.Description, ob.ReferenceLabel) {
		r.BonusPoints += referenceBonusPoints
		r.Reasons = append(r.Reasons, fmt.Sprintf("reference %q referenced", ob.ReferenceLabel))
	}

	total := r.AmountPoints + r.DatePoints + r.IdentityPoints + r.BonusPoints
	return total, r, nil
}

// firstTokenMatch returns the first name token longer than two characters
// that appears in the haystack, or "" if none does.
func firstTokenMatch(name, haystack string) string {
	for _, token := range strings.Fields(name) {
		if len([]rune(token)) <= 2 {
			continue
		}
		if strings.Contains(haystack, token) {
			return token
		}
	}
	return ""
}

// normalizeText lowercases and strips diacritics so "Pérez" matches the
// bank's "PEREZ".
func normalizeText(s string) string {
	decomposed := norm.NFD.String(strings.ToLower(s))
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
