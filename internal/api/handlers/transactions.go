package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rentdesk/rentdesk-backend/internal/api/dto"
	"github.com/rentdesk/rentdesk-backend/internal/infrastructure/storage"
)

// TransactionsHandler handles bank transaction HTTP requests.
type TransactionsHandler struct {
	*Base
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(repo storage.Repository) *TransactionsHandler {
	return &TransactionsHandler{
		Base: NewBase(repo),
	}
}

// List handles GET /api/transactions - returns paginated transactions.
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := storage.TransactionFilters{
		CompanyID:    r.URL.Query().Get("company_id"),
		ReviewStatus: r.URL.Query().Get("review_status"),
		Limit:        ParseIntParam(r, "limit", 50),
		Offset:       ParseIntParam(r, "offset", 0),
	}

	result, err := h.repo.ListTransactions(filters)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.TransactionListResponse{
		Transactions: make([]dto.TransactionResponse, 0, len(result.Transactions)),
		TotalCount:   result.TotalCount,
		Limit:        result.Limit,
		Offset:       result.Offset,
	}
	for _, tx := range result.Transactions {
		response.Transactions = append(response.Transactions, toTransactionResponse(tx))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Get handles GET /api/transactions/{id} - returns a single transaction.
func (h *TransactionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("transaction ID is required"))
		return
	}

	tx, err := h.repo.GetTransaction(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.WriteError(w, http.StatusNotFound, dto.NotFoundError("transaction"))
			return
		}
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, toTransactionResponse(tx))
}

// toTransactionResponse converts a storage transaction to an API response.
func toTransactionResponse(tx *storage.BankTransaction) dto.TransactionResponse {
	response := dto.TransactionResponse{
		ID:                  tx.ID,
		CompanyID:           tx.CompanyID,
		Amount:              tx.Amount.StringFixed(2),
		Date:                tx.Date.Format("2006-01-02"),
		Description:         tx.Description,
		CounterpartyName:    tx.CounterpartyName,
		ReviewStatus:        string(tx.ReviewStatus),
		MatchScore:          tx.MatchScore,
		MatchedObligationID: tx.MatchedObligationID,
		MatchedBy:           tx.MatchedBy,
		Notes:               tx.Notes,
	}

	if tx.MatchedAt != nil {
		response.MatchedAt = tx.MatchedAt.Format(time.RFC3339)
	}

	if tx.Suggestion != nil {
		response.Suggestion = &dto.SuggestionResponse{
			ObligationID: tx.Suggestion.ObligationID,
			Score:        tx.Suggestion.Score,
			PartyName:    tx.Suggestion.PartyName,
			Amount:       tx.Suggestion.Amount.StringFixed(2),
			DueDate:      tx.Suggestion.DueDate.Format("2006-01-02"),
		}
	}

	return response
}
