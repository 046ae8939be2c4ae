package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"ap-reconciler/internal/app"
	"ap-reconciler/internal/core"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// createPair handles POST /api/pairs.
func (h *Handler) createPair(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InvoiceID        int       `json:"invoice_id"`
		POID             *int      `json:"po_id"`
		MatchingResultID uuid.UUID `json:"matching_result_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid JSON body", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	pair, err := h.svc.CreatePair(r.Context(), req.InvoiceID, req.POID, req.MatchingResultID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, pair)
}

// listPairs handles GET /api/pairs?status=&stage=&has_issues=&limit=&offset=.
func (h *Handler) listPairs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := core.PairFilter{
		Status: core.PairStatus(q.Get("status")),
		Stage:  core.Stage(q.Get("stage")),
	}
	if v := q.Get("has_issues"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, "invalid has_issues", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		filter.HasIssues = &b
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, "invalid limit", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, "invalid offset", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		filter.Offset = n
	}
	pairs, err := h.svc.ListPairs(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pairs": pairs})
}

// getPair handles GET /api/pairs/{pairID}.
func (h *Handler) getPair(w http.ResponseWriter, r *http.Request) {
	id, ok := pairID(w, r)
	if !ok {
		return
	}
	pair, err := h.svc.GetPair(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// getPairComparison handles GET /api/pairs/{pairID}/comparison.
func (h *Handler) getPairComparison(w http.ResponseWriter, r *http.Request) {
	id, ok := pairID(w, r)
	if !ok {
		return
	}
	comparison, err := h.svc.GetPairComparison(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"line_items": comparison})
}

// advanceStage handles POST /api/pairs/{pairID}/advance.
func (h *Handler) advanceStage(w http.ResponseWriter, r *http.Request) {
	id, ok := pairID(w, r)
	if !ok {
		return
	}
	pair, err := h.svc.AdvanceStage(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// resolveIssue handles POST /api/pairs/{pairID}/issues/{issueID}/resolve.
func (h *Handler) resolveIssue(w http.ResponseWriter, r *http.Request) {
	id, ok := pairID(w, r)
	if !ok {
		return
	}
	issueID, err := uuid.Parse(chi.URLParam(r, "issueID"))
	if err != nil {
		writeError(w, r, "invalid issue id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	var req struct {
		Action     string `json:"action"`
		Notes      string `json:"notes"`
		ResolvedBy string `json:"resolved_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid JSON body", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	issue, err := h.svc.ResolveIssue(r.Context(), app.ResolveIssueRequest{
		PairID:     id,
		IssueID:    issueID,
		Action:     core.ResolutionAction(req.Action),
		Notes:      req.Notes,
		ResolvedBy: req.ResolvedBy,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

// approvePair handles POST /api/pairs/{pairID}/approve.
func (h *Handler) approvePair(w http.ResponseWriter, r *http.Request) {
	id, ok := pairID(w, r)
	if !ok {
		return
	}
	var req struct {
		Notes string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid JSON body", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	pair, err := h.svc.ApprovePair(r.Context(), id, req.Notes)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// rejectPair handles POST /api/pairs/{pairID}/reject.
func (h *Handler) rejectPair(w http.ResponseWriter, r *http.Request) {
	id, ok := pairID(w, r)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid JSON body", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	pair, err := h.svc.RejectPair(r.Context(), id, req.Reason)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func pairID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "pairID"))
	if err != nil {
		writeError(w, r, "invalid pair id", "BAD_REQUEST", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}
