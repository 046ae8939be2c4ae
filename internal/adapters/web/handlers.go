package web

import (
	"net/http"

	"ap-reconciler/internal/app"

	"github.com/go-chi/chi/v5"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc    app.ApplicationService
	router chi.Router
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins string) http.Handler {
	h := &Handler{svc: svc}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(CORS(allowedOrigins))
	r.Use(RequestBodyLimit(1 << 20)) // 1 MB

	r.Get("/api/health", h.health)

	r.Route("/api", func(r chi.Router) {
		// Document intake
		r.Post("/vendors", h.createVendor)
		r.Get("/vendors", h.listVendors)
		r.Post("/invoices", h.createInvoice)
		r.Get("/invoices", h.listInvoices)
		r.Get("/invoices/{invoiceID}", h.getInvoice)
		r.Post("/purchase-orders", h.createPurchaseOrder)
		r.Get("/purchase-orders/{poID}", h.getPurchaseOrder)

		// Matching engine
		r.Post("/matching/{invoiceID}/process", h.processInvoice)
		r.Post("/matching/batch", h.processBatch)
		r.Get("/matching/results/{resultID}", h.getMatchingResult)

		// Review queue
		r.Get("/review-queue", h.listReviewQueue)
		r.Post("/review-queue/{queueID}/resolve", h.resolveReviewItem)

		// Workflow pairs
		r.Post("/pairs", h.createPair)
		r.Get("/pairs", h.listPairs)
		r.Get("/pairs/{pairID}", h.getPair)
		r.Get("/pairs/{pairID}/comparison", h.getPairComparison)
		r.Post("/pairs/{pairID}/advance", h.advanceStage)
		r.Post("/pairs/{pairID}/issues/{issueID}/resolve", h.resolveIssue)
		r.Post("/pairs/{pairID}/approve", h.approvePair)
		r.Post("/pairs/{pairID}/reject", h.rejectPair)
	})

	h.router = r
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
