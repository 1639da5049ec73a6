package dto

// ReconcileRequest is the body of POST /api/reconcile.
type ReconcileRequest struct {
	CompanyID string `json:"company_id"`
}

// AcceptSuggestionRequest is the body of POST /api/transactions/{id}/match.
// Reviewer is the identity recorded in the audit trail.
type AcceptSuggestionRequest struct {
	Reviewer string `json:"reviewer"`
}
