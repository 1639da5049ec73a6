package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rentdesk/rentdesk-backend/internal/api/dto"
	"github.com/rentdesk/rentdesk-backend/internal/application/reconcile"
	"github.com/rentdesk/rentdesk-backend/internal/application/service"
	"github.com/rentdesk/rentdesk-backend/internal/infrastructure/storage"
)

// ReconcileHandler handles reconciliation HTTP requests.
type ReconcileHandler struct {
	*Base
	reconcileService *service.ReconcileService
}

// NewReconcileHandler creates a new reconcile handler.
func NewReconcileHandler(reconcileService *service.ReconcileService) *ReconcileHandler {
	return &ReconcileHandler{
		Base:             &Base{},
		reconcileService: reconcileService,
	}
}

// Run handles POST /api/reconcile - runs one synchronous batch.
func (h *ReconcileHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req dto.ReconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}

	if req.CompanyID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("company_id is required"))
		return
	}

	summary, err := h.reconcileService.Run(r.Context(), req.CompanyID)
	if err != nil {
		if errors.Is(err, service.ErrRunInProgress) {
			h.WriteError(w, http.StatusConflict, dto.ConflictError(err.Error()))
			return
		}
		if errors.Is(err, reconcile.ErrCompanyRequired) {
			h.WriteError(w, http.StatusBadRequest, dto.BadRequestError(err.Error()))
			return
		}
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, toSummaryResponse(summary))
}

// AcceptSuggestion handles POST /api/transactions/{id}/match - applies a
// pending suggestion on behalf of a reviewer.
func (h *ReconcileHandler) AcceptSuggestion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("transaction ID is required"))
		return
	}

	var req dto.AcceptSuggestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}
	if req.Reviewer == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("reviewer is required"))
		return
	}

	tx, err := h.reconcileService.AcceptSuggestion(r.Context(), id, req.Reviewer)
	if err != nil {
		h.writeSuggestionError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, toTransactionResponse(tx))
}

// DismissSuggestion handles DELETE /api/transactions/{id}/suggestion.
func (h *ReconcileHandler) DismissSuggestion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("transaction ID is required"))
		return
	}

	tx, err := h.reconcileService.DismissSuggestion(r.Context(), id)
	if err != nil {
		h.writeSuggestionError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, toTransactionResponse(tx))
}

func (h *ReconcileHandler) writeSuggestionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("transaction"))
	case errors.Is(err, service.ErrNoSuggestion):
		h.WriteError(w, http.StatusConflict, dto.ConflictError(err.Error()))
	case errors.Is(err, storage.ErrObligationClaimed),
		errors.Is(err, storage.ErrTransactionNotPending):
		h.WriteError(w, http.StatusConflict, dto.ConflictError(err.Error()))
	default:
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
	}
}

// toSummaryResponse converts a run summary to an API response.
func toSummaryResponse(summary *reconcile.Summary) dto.ReconcileSummaryResponse {
	response := dto.ReconcileSummaryResponse{
		AutoMatched:    summary.AutoMatched,
		Suggested:      summary.Suggested,
		TotalProcessed: summary.TotalProcessed,
		Details:        make([]dto.MatchDetailResponse, 0, len(summary.Details)),
		Message:        summary.Message,
	}

	for _, d := range summary.Details {
		response.Details = append(response.Details, dto.MatchDetailResponse{
			TransactionID:  d.TransactionID,
			ObligationID:   d.ObligationID,
			Amount:         d.Amount.StringFixed(2),
			PartyName:      d.PartyName,
			Score:          d.Score,
			WasAutoApplied: d.WasAutoApplied,
		})
	}

	return response
}
