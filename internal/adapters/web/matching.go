package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"ap-reconciler/internal/core"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// processInvoice handles POST /api/matching/{invoiceID}/process.
func (h *Handler) processInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "invoiceID"))
	if err != nil {
		writeError(w, r, "invalid invoice id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	result, err := h.svc.ProcessInvoice(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// processBatch handles POST /api/matching/batch.
func (h *Handler) processBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InvoiceIDs []int `json:"invoice_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid JSON body", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	result, err := h.svc.ProcessBatch(r.Context(), req.InvoiceIDs)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// getMatchingResult handles GET /api/matching/results/{resultID}.
func (h *Handler) getMatchingResult(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "resultID"))
	if err != nil {
		writeError(w, r, "invalid result id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	result, err := h.svc.GetMatchingResult(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// listReviewQueue handles GET /api/review-queue.
func (h *Handler) listReviewQueue(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := core.ReviewQueueFilter{
		Priority: core.Priority(q.Get("priority")),
		Category: core.IssueCategory(q.Get("category")),
		Status:   q.Get("status"),
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			writeError(w, r, "invalid limit", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		filter.Limit = n
	}
	items, err := h.svc.ListReviewQueue(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// resolveReviewItem handles POST /api/review-queue/{queueID}/resolve.
func (h *Handler) resolveReviewItem(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "queueID"))
	if err != nil {
		writeError(w, r, "invalid queue id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	var req struct {
		Outcome string `json:"outcome"`
		Notes   string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid JSON body", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	item, err := h.svc.ResolveReviewItem(r.Context(), id, core.ReviewOutcome(req.Outcome), req.Notes)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}
