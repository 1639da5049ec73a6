package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentdesk/rentdesk-backend/internal/api"
	"github.com/rentdesk/rentdesk-backend/internal/api/dto"
	"github.com/rentdesk/rentdesk-backend/internal/application/reconcile"
	"github.com/rentdesk/rentdesk-backend/internal/application/service"
	"github.com/rentdesk/rentdesk-backend/internal/domain/matcher"
	"github.com/rentdesk/rentdesk-backend/internal/infrastructure/storage"
)

// These tests run the full stack against a real SQLite database:
// HTTP request -> router -> handlers -> service -> storage.
// They catch what mock-based tests miss, like NULL handling in scans and
// JSON round trips through the whole pipeline.

func createTestServer(t *testing.T) (*httptest.Server, *storage.Storage) {
	t.Helper()

	store, err := storage.NewStorage(filepath.Join(t.TempDir(), "integration.db"))
	require.NoError(t, err)

	runner := reconcile.NewRunner(store, matcher.NewRuleScorer(), reconcile.DefaultConfig(), nil)
	svc := service.NewReconcileService(store, runner, nil)
	server := api.NewServer(api.DefaultConfig(), store, svc, nil)

	ts := httptest.NewServer(server.Router())
	t.Cleanup(func() {
		ts.Close()
		store.Close()
	})

	return ts, store
}

func TestAPI_Integration_HealthCheck(t *testing.T) {
	ts, _ := createTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health dto.HealthResponse
	err = json.NewDecoder(resp.Body).Decode(&health)
	require.NoError(t, err)

	assert.Equal(t, "ok", health.Status)
}

func TestAPI_Integration_ReconcileFlow(t *testing.T) {
	ts, store := createTestServer(t)

	require.NoError(t, store.SaveObligation(&storage.Obligation{
		ID:          "ob-1",
		CompanyID:   "company-1",
		PartyName:   "Juan Pérez García",
		Amount:      dec(t, "850.00"),
		DueDate:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		PeriodLabel: "2024-03",
		Status:      storage.ObligationPending,
	}))
	require.NoError(t, store.SaveTransaction(&storage.BankTransaction{
		ID:           "tx-1",
		CompanyID:    "company-1",
		Amount:       dec(t, "850.00"),
		Date:         time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		Description:  "TRANSFERENCIA JUAN PEREZ GARCIA ALQUILER 2024-03",
		ReviewStatus: storage.ReviewPending,
	}))

	// Trigger a batch over HTTP
	body, _ := json.Marshal(dto.ReconcileRequest{CompanyID: "company-1"})
	resp, err := http.Post(ts.URL+"/api/reconcile", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary dto.ReconcileSummaryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.Equal(t, 1, summary.AutoMatched)
	assert.Equal(t, 0, summary.Suggested)

	// Both sides of the pair are committed in the database
	txResp, err := http.Get(ts.URL + "/api/transactions/tx-1")
	require.NoError(t, err)
	defer txResp.Body.Close()

	var tx dto.TransactionResponse
	require.NoError(t, json.NewDecoder(txResp.Body).Decode(&tx))
	assert.Equal(t, string(storage.ReviewMatched), tx.ReviewStatus)
	require.NotNil(t, tx.MatchedObligationID)
	assert.Equal(t, "ob-1", *tx.MatchedObligationID)
	assert.Equal(t, "auto-reconciliation", tx.MatchedBy)
	assert.Contains(t, tx.Notes, "Juan Pérez García")

	obResp, err := http.Get(ts.URL + "/api/obligations/ob-1")
	require.NoError(t, err)
	defer obResp.Body.Close()

	var ob dto.ObligationResponse
	require.NoError(t, json.NewDecoder(obResp.Body).Decode(&ob))
	assert.Equal(t, string(storage.ObligationPaid), ob.Status)
	assert.Equal(t, "2024-03-05", ob.PaymentDate)
	assert.Equal(t, "bank-transfer", ob.PaymentMethod)

	// The run was recorded
	runsResp, err := http.Get(ts.URL + "/api/runs")
	require.NoError(t, err)
	defer runsResp.Body.Close()

	var runs dto.RunListResponse
	require.NoError(t, json.NewDecoder(runsResp.Body).Decode(&runs))
	require.Equal(t, 1, runs.Count)
	assert.Equal(t, "completed", runs.Runs[0].Status)
	assert.Equal(t, 1, runs.Runs[0].AutoMatched)
}

func TestAPI_Integration_SuggestionReview(t *testing.T) {
	ts, store := createTestServer(t)

	// Amount matches within 5% and date is close, but nothing ties the
	// description to the party, so the pair only reaches a suggestion.
	require.NoError(t, store.SaveObligation(&storage.Obligation{
		ID:        "ob-1",
		CompanyID: "company-1",
		PartyName: "María López",
		Amount:    dec(t, "900.00"),
		DueDate:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Status:    storage.ObligationPending,
	}))
	require.NoError(t, store.SaveTransaction(&storage.BankTransaction{
		ID:           "tx-1",
		CompanyID:    "company-1",
		Amount:       dec(t, "880.00"),
		Date:         time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC),
		Description:  "TRANSFERENCIA RECIBIDA",
		ReviewStatus: storage.ReviewPending,
	}))

	body, _ := json.Marshal(dto.ReconcileRequest{CompanyID: "company-1"})
	resp, err := http.Post(ts.URL+"/api/reconcile", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var summary dto.ReconcileSummaryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	require.Equal(t, 1, summary.Suggested)

	// Accept the suggestion as a reviewer
	acceptBody, _ := json.Marshal(dto.AcceptSuggestionRequest{Reviewer: "ops@rentdesk.example"})
	acceptResp, err := http.Post(ts.URL+"/api/transactions/tx-1/match", "application/json", bytes.NewReader(acceptBody))
	require.NoError(t, err)
	defer acceptResp.Body.Close()

	require.Equal(t, http.StatusOK, acceptResp.StatusCode)

	var tx dto.TransactionResponse
	require.NoError(t, json.NewDecoder(acceptResp.Body).Decode(&tx))
	assert.Equal(t, string(storage.ReviewMatched), tx.ReviewStatus)
	assert.Equal(t, "ops@rentdesk.example", tx.MatchedBy)

	ob, err := store.GetObligation("ob-1")
	require.NoError(t, err)
	assert.Equal(t, storage.ObligationPaid, ob.Status)
}

func TestAPI_Integration_ListTransactions_Empty(t *testing.T) {
	ts, _ := createTestServer(t)

	resp, err := http.Get(ts.URL + "/api/transactions")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result dto.TransactionListResponse
	err = json.NewDecoder(resp.Body).Decode(&result)
	require.NoError(t, err)

	assert.Equal(t, 0, result.TotalCount)
	assert.Empty(t, result.Transactions)
}
