package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rentdesk/rentdesk-backend/internal/api/dto"
	"github.com/rentdesk/rentdesk-backend/internal/infrastructure/storage"
)

// ObligationsHandler handles payment obligation HTTP requests.
type ObligationsHandler struct {
	*Base
}

// NewObligationsHandler creates a new obligations handler.
func NewObligationsHandler(repo storage.Repository) *ObligationsHandler {
	return &ObligationsHandler{
		Base: NewBase(repo),
	}
}

// List handles GET /api/obligations - returns paginated obligations.
func (h *ObligationsHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := storage.ObligationFilters{
		CompanyID: r.URL.Query().Get("company_id"),
		Status:    r.URL.Query().Get("status"),
		Limit:     ParseIntParam(r, "limit", 50),
		Offset:    ParseIntParam(r, "offset", 0),
	}

	result, err := h.repo.ListObligations(filters)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.ObligationListResponse{
		Obligations: make([]dto.ObligationResponse, 0, len(result.Obligations)),
		TotalCount:  result.TotalCount,
		Limit:       result.Limit,
		Offset:      result.Offset,
	}
	for _, ob := range result.Obligations {
		response.Obligations = append(response.Obligations, toObligationResponse(ob))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Get handles GET /api/obligations/{id} - returns a single obligation.
func (h *ObligationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("obligation ID is required"))
		return
	}

	ob, err := h.repo.GetObligation(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.WriteError(w, http.StatusNotFound, dto.NotFoundError("obligation"))
			return
		}
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, toObligationResponse(ob))
}

// toObligationResponse converts a storage obligation to an API response.
func toObligationResponse(ob *storage.Obligation) dto.ObligationResponse {
	response := dto.ObligationResponse{
		ID:             ob.ID,
		CompanyID:      ob.CompanyID,
		PartyName:      ob.PartyName,
		Amount:         ob.Amount.StringFixed(2),
		DueDate:        ob.DueDate.Format("2006-01-02"),
		PeriodLabel:    ob.PeriodLabel,
		ReferenceLabel: ob.ReferenceLabel,
		Status:         string(ob.Status),
		PaymentMethod:  ob.PaymentMethod,
	}

	if ob.PaymentDate != nil {
		response.PaymentDate = ob.PaymentDate.Format("2006-01-02")
	}

	return response
}
