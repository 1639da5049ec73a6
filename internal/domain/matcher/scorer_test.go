package matcher

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentdesk/rentdesk-backend/internal/infrastructure/storage"
)

// Helpers to build test records
func makeTx(amount string, date time.Time, description string) *storage.BankTransaction {
	return &storage.BankTransaction{
		ID:           "tx-test",
		CompanyID:    "co-1",
		Amount:       decimal.RequireFromString(amount),
		Date:         date,
		Description:  description,
		ReviewStatus: storage.ReviewPending,
	}
}

func makeOb(amount string, due time.Time, party string) *storage.Obligation {
	return &storage.Obligation{
		ID:        "ob-test",
		CompanyID: "co-1",
		Amount:    decimal.RequireFromString(amount),
		DueDate:   due,
		PartyName: party,
		Status:    storage.ObligationPending,
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestRuleScorer_RentTransferWithSurname(t *testing.T) {
	// Arrange: exact amount, 4 days late, surname in the narrative
	scorer := NewRuleScorer()
	tx := makeTx("850.00", day(2024, 3, 5), "TRANSFERENCIA JUAN PEREZ ALQUILER MARZO")
	ob := makeOb("850.00", day(2024, 3, 1), "Juan Pérez García")
	ob.PeriodLabel = "2024-03"

	// Act
	score, rationale, err := scorer.Score(context.Background(), tx, ob)

	// Assert: 50 (amount) + 15 (date) + 10 (token) = 75
	require.NoError(t, err)
	assert.Equal(t, 75, score)
	assert.Equal(t, 50, rationale.AmountPoints)
	assert.Equal(t, 15, rationale.DatePoints)
	assert.Equal(t, 10, rationale.IdentityPoints)
	assert.Equal(t, 0, rationale.BonusPoints)
	assert.False(t, rationale.Disqualified)
}

func TestRuleScorer_AmountOnlyMatch(t *testing.T) {
	// Arrange: exact amount, but 20 days off and a different party
	scorer := NewRuleScorer()
	tx := makeTx("850.00", day(2024, 3, 21), "TRANSFERENCIA SIN CONCEPTO")
	ob := makeOb("850.00", day(2024, 3, 1), "María López")

	// Act
	score, rationale, err := scorer.Score(context.Background(), tx, ob)

	// Assert: 50 + 0 + 0 = 50
	require.NoError(t, err)
	assert.Equal(t, 50, score)
	assert.Equal(t, 0, rationale.DatePoints)
	assert.Equal(t, 0, rationale.IdentityPoints)
}

func TestRuleScorer_AmountGateDisqualifies(t *testing.T) {
	// Arrange: 10% apart — out, no matter how well everything else aligns
	scorer := NewRuleScorer()
	tx := makeTx("935.00", day(2024, 3, 1), "TRANSFERENCIA JUAN PEREZ GARCIA ALQUILER")
	ob := makeOb("850.00", day(2024, 3, 1), "Juan Pérez García")

	// Act
	score, rationale, err := scorer.Score(context.Background(), tx, ob)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 0, score)
	assert.True(t, rationale.Disqualified)
	assert.Equal(t, 0, rationale.DatePoints, "disqualification short-circuits the other factors")
	assert.Equal(t, 0, rationale.IdentityPoints)
}

func TestRuleScorer_AmountToleranceBoundaries(t *testing.T) {
	scorer := NewRuleScorer()
	due := day(2024, 3, 1)
	ob := makeOb("1000.00", due, "Nobody Relevant")

	cases := []struct {
		name   string
		amount string
		points int
	}{
		{"exact", "1000.00", 50},
		{"at one percent", "1010.00", 50},
		{"just past one percent", "1010.01", 25},
		{"at five percent", "1050.00", 25},
		{"just past five percent", "1050.01", 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx := makeTx(tc.amount, due, "PAYMENT")
			score, rationale, err := scorer.Score(context.Background(), tx, ob)
			require.NoError(t, err)
			assert.Equal(t, tc.points, rationale.AmountPoints)
			if tc.points == 0 {
				assert.True(t, rationale.Disqualified)
				assert.Equal(t, 0, score)
			}
		})
	}
}

func TestRuleScorer_DateProximityBands(t *testing.T) {
	scorer := NewRuleScorer()
	due := day(2024, 3, 10)
	ob := makeOb("500.00", due, "Nobody Relevant")

	cases := []struct {
		name   string
		date   time.Time
		points int
	}{
		{"same day", due, 25},
		{"three days early", day(2024, 3, 7), 25},
		{"seven days late", day(2024, 3, 17), 15},
		{"fifteen days late", day(2024, 3, 25), 5},
		{"sixteen days late", day(2024, 3, 26), 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx := makeTx("500.00", tc.date, "PAYMENT")
			_, rationale, err := scorer.Score(context.Background(), tx, ob)
			require.NoError(t, err)
			assert.Equal(t, tc.points, rationale.DatePoints)
		})
	}
}

func TestRuleScorer_FullNameMatch_FoldsDiacritics(t *testing.T) {
	scorer := NewRuleScorer()
	tx := makeTx("850.00", day(2024, 3, 1), "TRF JUAN PEREZ GARCIA MARZO")
	ob := makeOb("850.00", day(2024, 3, 1), "Juan Pérez García")

	score, rationale, err := scorer.Score(context.Background(), tx, ob)

	require.NoError(t, err)
	assert.Equal(t, 25, rationale.IdentityPoints, "accented name should match its unaccented narrative form")
	assert.Equal(t, 100, score)
}

func TestRuleScorer_ShortTokensIgnored(t *testing.T) {
	// Tokens of length <= 2 never count ("de", "la" would match everything)
	scorer := NewRuleScorer()
	tx := makeTx("850.00", day(2024, 3, 1), "TRANSFERENCIA DE LA CUENTA")
	ob := makeOb("850.00", day(2024, 3, 1), "Ana de la Torre")

	_, rationale, err := scorer.Score(context.Background(), tx, ob)

	require.NoError(t, err)
	assert.Equal(t, 0, rationale.IdentityPoints)
}

func TestRuleScorer_CounterpartyNameCounts(t *testing.T) {
	scorer := NewRuleScorer()
	tx := makeTx("850.00", day(2024, 3, 1), "INCOMING TRANSFER")
	tx.CounterpartyName = "PEREZ GARCIA JUAN"
	ob := makeOb("850.00", day(2024, 3, 1), "Juan Pérez García")

	_, rationale, err := scorer.Score(context.Background(), tx, ob)

	require.NoError(t, err)
	assert.Equal(t, 10, rationale.IdentityPoints, "token match against the secondary payer field")
}

func TestRuleScorer_ReferenceBonusesPushPastHundred(t *testing.T) {
	// Arrange: everything aligns and both structured references are present
	scorer := NewRuleScorer()
	tx := makeTx("850.00", day(2024, 3, 1), "TRF JUAN PEREZ GARCIA ALQUILER 2024-03 APT-3B")
	ob := makeOb("850.00", day(2024, 3, 1), "Juan Pérez García")
	ob.PeriodLabel = "2024-03"
	ob.ReferenceLabel = "APT-3B"

	// Act
	score, rationale, err := scorer.Score(context.Background(), tx, ob)

	// Assert: 50 + 25 + 25 + 10 + 5 = 115
	require.NoError(t, err)
	assert.Equal(t, 115, score)
	assert.Equal(t, 15, rationale.BonusPoints)
}

func TestRuleScorer_PeriodBonusIsCaseInsensitive(t *testing.T) {
	scorer := NewRuleScorer()
	tx := makeTx("850.00", day(2024, 3, 1), "rent march-2024")
	ob := makeOb("850.00", day(2024, 3, 1), "Nobody Relevant")
	ob.PeriodLabel = "MARCH-2024"

	_, rationale, err := scorer.Score(context.Background(), tx, ob)

	require.NoError(t, err)
	assert.Equal(t, 10, rationale.BonusPoints)
}

func TestRuleScorer_Deterministic(t *testing.T) {
	scorer := NewRuleScorer()
	tx := makeTx("850.00", day(2024, 3, 5), "TRANSFERENCIA JUAN PEREZ ALQUILER MARZO")
	ob := makeOb("850.00", day(2024, 3, 1), "Juan Pérez García")

	first, _, err := scorer.Score(context.Background(), tx, ob)
	require.NoError(t, err)
	second, _, err := scorer.Score(context.Background(), tx, ob)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRationale_Describe(t *testing.T) {
	r := Rationale{Reasons: []string{"amount 850 within 1% of 850", "due date within 4 days"}}

	text := r.Describe("Juan Pérez García", 75)

	assert.Contains(t, text, "Juan Pérez García")
	assert.Contains(t, text, "75")
	assert.Contains(t, text, "amount 850 within 1% of 850")
}
