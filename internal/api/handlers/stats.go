package handlers

import (
	"net/http"

	"github.com/rentdesk/rentdesk-backend/internal/api/dto"
	"github.com/rentdesk/rentdesk-backend/internal/infrastructure/storage"
)

// StatsHandler handles stats HTTP requests.
type StatsHandler struct {
	*Base
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(repo storage.Repository) *StatsHandler {
	return &StatsHandler{
		Base: NewBase(repo),
	}
}

// Get handles GET /api/stats - returns aggregate reconciliation statistics.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.GetStats()
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.StatsResponse{
		PendingTransactions: stats.PendingTransactions,
		MatchedTransactions: stats.MatchedTransactions,
		SuggestedCount:      stats.SuggestedCount,
		PendingObligations:  stats.PendingObligations,
		PaidObligations:     stats.PaidObligations,
		MatchedAmount:       stats.MatchedAmount.StringFixed(2),
	}

	h.WriteJSON(w, http.StatusOK, response)
}
