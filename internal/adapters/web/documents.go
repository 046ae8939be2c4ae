package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"ap-reconciler/internal/app"
	"ap-reconciler/internal/core"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type vendorRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type lineRequest struct {
	SKU         string          `json:"sku"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type invoiceRequest struct {
	InvoiceNumber string          `json:"invoice_number"`
	VendorID      *int            `json:"vendor_id"`
	PONumber      string          `json:"po_number"`
	InvoiceDate   string          `json:"invoice_date"` // YYYY-MM-DD
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Currency      string          `json:"currency"`
	Lines         []lineRequest   `json:"lines"`
}

type poRequest struct {
	PONumber    string          `json:"po_number"`
	VendorID    int             `json:"vendor_id"`
	OrderDate   string          `json:"order_date"` // YYYY-MM-DD
	TotalAmount decimal.Decimal `json:"total_amount"`
	Currency    string          `json:"currency"`
	Lines       []lineRequest   `json:"lines"`
}

// createVendor handles POST /api/vendors.
func (h *Handler) createVendor(w http.ResponseWriter, r *http.Request) {
	var req vendorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid JSON body", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	vendor, err := h.svc.CreateVendor(r.Context(), req.Name, req.Email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, vendor)
}

// listVendors handles GET /api/vendors.
func (h *Handler) listVendors(w http.ResponseWriter, r *http.Request) {
	vendors, err := h.svc.ListVendors(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vendors": vendors})
}

// createInvoice handles POST /api/invoices.
func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req invoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid JSON body", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	date, err := parseDate(req.InvoiceDate)
	if err != nil {
		writeError(w, r, "invoice_date must be YYYY-MM-DD", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	inv, err := h.svc.CreateInvoice(r.Context(), app.CreateInvoiceRequest{
		InvoiceNumber: req.InvoiceNumber,
		VendorID:      req.VendorID,
		PONumber:      req.PONumber,
		InvoiceDate:   date,
		TotalAmount:   req.TotalAmount,
		Currency:      req.Currency,
		Lines:         toLineInputs(req.Lines),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

// getInvoice handles GET /api/invoices/{invoiceID}.
func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "invoiceID"))
	if err != nil {
		writeError(w, r, "invalid invoice id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	inv, err := h.svc.GetInvoice(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// listInvoices handles GET /api/invoices?status=.
func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	status := core.InvoiceStatus(r.URL.Query().Get("status"))
	invoices, err := h.svc.ListInvoices(r.Context(), status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}

// createPurchaseOrder handles POST /api/purchase-orders.
func (h *Handler) createPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	var req poRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid JSON body", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	date, err := parseDate(req.OrderDate)
	if err != nil {
		writeError(w, r, "order_date must be YYYY-MM-DD", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	po, err := h.svc.CreatePurchaseOrder(r.Context(), app.CreatePORequest{
		PONumber:    req.PONumber,
		VendorID:    req.VendorID,
		OrderDate:   date,
		TotalAmount: req.TotalAmount,
		Currency:    req.Currency,
		Lines:       toLineInputs(req.Lines),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, po)
}

// getPurchaseOrder handles GET /api/purchase-orders/{poID}.
func (h *Handler) getPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "poID"))
	if err != nil {
		writeError(w, r, "invalid purchase order id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	po, err := h.svc.GetPurchaseOrder(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, po)
}

func toLineInputs(lines []lineRequest) []app.LineInput {
	out := make([]app.LineInput, len(lines))
	for i, l := range lines {
		out[i] = app.LineInput{
			SKU:         l.SKU,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
		}
	}
	return out
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
