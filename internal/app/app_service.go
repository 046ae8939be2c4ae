package app

import (
	"context"
	"fmt"
	"strings"

	"ap-reconciler/internal/core"

	"github.com/google/uuid"
)

type appService struct {
	vendors  core.VendorService
	invoices core.InvoiceService
	orders   core.PurchaseOrderService
	matching core.MatchingService
	pairs    core.PairService
	queue    core.ReviewQueueService
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(
	vendors core.VendorService,
	invoices core.InvoiceService,
	orders core.PurchaseOrderService,
	matching core.MatchingService,
	pairs core.PairService,
	queue core.ReviewQueueService,
) ApplicationService {
	return &appService{
		vendors:  vendors,
		invoices: invoices,
		orders:   orders,
		matching: matching,
		pairs:    pairs,
		queue:    queue,
	}
}

func (s *appService) CreateVendor(ctx context.Context, name, email string) (*core.Vendor, error) {
	return s.vendors.CreateVendor(ctx, name, email)
}

func (s *appService) ListVendors(ctx context.Context) ([]core.Vendor, error) {
	return s.vendors.ListVendors(ctx)
}

func (s *appService) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*core.Invoice, error) {
	input := core.InvoiceInput{
		InvoiceNumber: strings.TrimSpace(req.InvoiceNumber),
		VendorID:      req.VendorID,
		InvoiceDate:   req.InvoiceDate,
		TotalAmount:   req.TotalAmount,
		Currency:      req.Currency,
		Lines:         invoiceLines(req.Lines),
	}
	if po := strings.TrimSpace(req.PONumber); po != "" {
		input.PONumber = &po
	}
	return s.invoices.CreateInvoice(ctx, input)
}

func (s *appService) GetInvoice(ctx context.Context, invoiceID int) (*core.Invoice, error) {
	return s.invoices.GetInvoice(ctx, invoiceID)
}

func (s *appService) ListInvoices(ctx context.Context, status core.InvoiceStatus) ([]core.Invoice, error) {
	return s.invoices.GetInvoices(ctx, string(status))
}

func (s *appService) CreatePurchaseOrder(ctx context.Context, req CreatePORequest) (*core.PurchaseOrder, error) {
	return s.orders.CreatePO(ctx, core.POInput{
		PONumber:    strings.TrimSpace(req.PONumber),
		VendorID:    req.VendorID,
		OrderDate:   req.OrderDate,
		TotalAmount: req.TotalAmount,
		Currency:    req.Currency,
		Lines:       poLines(req.Lines),
	})
}

func (s *appService) GetPurchaseOrder(ctx context.Context, poID int) (*core.PurchaseOrder, error) {
	return s.orders.GetPO(ctx, poID)
}

func (s *appService) ProcessInvoice(ctx context.Context, invoiceID int) (*core.MatchingResult, error) {
	return s.matching.Process(ctx, invoiceID)
}

func (s *appService) ProcessBatch(ctx context.Context, invoiceIDs []int) (*BatchResult, error) {
	results, failures, err := s.matching.ProcessBatch(ctx, invoiceIDs)
	if err != nil {
		return nil, err
	}
	return &BatchResult{
		Processed: len(results),
		Failed:    len(failures),
		Results:   results,
		Failures:  failures,
	}, nil
}

func (s *appService) GetMatchingResult(ctx context.Context, resultID uuid.UUID) (*core.MatchingResult, error) {
	return s.matching.GetResult(ctx, resultID)
}

func (s *appService) ListReviewQueue(ctx context.Context, filter core.ReviewQueueFilter) ([]core.ReviewQueueItem, error) {
	return s.queue.ListQueue(ctx, filter)
}

func (s *appService) ResolveReviewItem(ctx context.Context, queueID uuid.UUID, outcome core.ReviewOutcome, notes string) (*core.ReviewQueueItem, error) {
	return s.queue.ResolveItem(ctx, queueID, outcome, notes)
}

func (s *appService) CreatePair(ctx context.Context, invoiceID int, poID *int, matchingResultID uuid.UUID) (*core.DocumentPair, error) {
	return s.pairs.CreatePair(ctx, invoiceID, poID, matchingResultID)
}

func (s *appService) ListPairs(ctx context.Context, filter core.PairFilter) ([]core.DocumentPair, error) {
	return s.pairs.ListPairs(ctx, filter)
}

func (s *appService) GetPair(ctx context.Context, pairID uuid.UUID) (*core.DocumentPair, error) {
	return s.pairs.GetPair(ctx, pairID)
}

func (s *appService) GetPairComparison(ctx context.Context, pairID uuid.UUID) ([]core.LineComparison, error) {
	pair, err := s.pairs.GetPair(ctx, pairID)
	if err != nil {
		return nil, err
	}
	inv, err := s.invoices.GetInvoice(ctx, pair.InvoiceID)
	if err != nil {
		return nil, err
	}
	var poLines []core.POLine
	if pair.POID != nil {
		po, err := s.orders.GetPO(ctx, *pair.POID)
		if err != nil {
			return nil, fmt.Errorf("load PO for pair %s: %w", pairID, err)
		}
		poLines = po.Lines
	}
	return core.CompareLineItems(inv.Lines, poLines, pair.Issues), nil
}

func (s *appService) AdvanceStage(ctx context.Context, pairID uuid.UUID) (*core.DocumentPair, error) {
	return s.pairs.AdvanceStage(ctx, pairID)
}

func (s *appService) ResolveIssue(ctx context.Context, req ResolveIssueRequest) (*core.ValidationIssue, error) {
	resolvedBy := req.ResolvedBy
	if resolvedBy == "" {
		resolvedBy = "user"
	}
	return s.pairs.ResolveIssue(ctx, req.PairID, req.IssueID, req.Action, req.Notes, resolvedBy)
}

func (s *appService) ApprovePair(ctx context.Context, pairID uuid.UUID, notes string) (*core.DocumentPair, error) {
	return s.pairs.ApprovePair(ctx, pairID, notes)
}

func (s *appService) RejectPair(ctx context.Context, pairID uuid.UUID, reason string) (*core.DocumentPair, error) {
	return s.pairs.RejectPair(ctx, pairID, reason)
}

func invoiceLines(lines []LineInput) []core.InvoiceLineInput {
	out := make([]core.InvoiceLineInput, len(lines))
	for i, l := range lines {
		out[i] = core.InvoiceLineInput{
			SKU:         strings.TrimSpace(l.SKU),
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
		}
	}
	return out
}

func poLines(lines []LineInput) []core.POLineInput {
	out := make([]core.POLineInput, len(lines))
	for i, l := range lines {
		out[i] = core.POLineInput{
			SKU:         strings.TrimSpace(l.SKU),
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
		}
	}
	return out
}
