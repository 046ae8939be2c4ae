package app

import (
	"context"

	"ap-reconciler/internal/core"

	"github.com/google/uuid"
)

// ApplicationService is the single interface all adapters (Web, CLI) call.
// It decouples presentation from business logic. Implementations must contain
// no fmt.Println, no ANSI codes, and no display logic of any kind.
type ApplicationService interface {
	// CreateVendor registers a vendor master record.
	CreateVendor(ctx context.Context, name, email string) (*core.Vendor, error)

	// ListVendors returns all vendors ordered by name.
	ListVendors(ctx context.Context) ([]core.Vendor, error)

	// CreateInvoice records an incoming invoice with its lines, status "new".
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*core.Invoice, error)

	// GetInvoice returns one invoice with lines.
	GetInvoice(ctx context.Context, invoiceID int) (*core.Invoice, error)

	// ListInvoices returns invoices, optionally filtered by derived status.
	ListInvoices(ctx context.Context, status core.InvoiceStatus) ([]core.Invoice, error)

	// CreatePurchaseOrder records a PO with its lines.
	CreatePurchaseOrder(ctx context.Context, req CreatePORequest) (*core.PurchaseOrder, error)

	// GetPurchaseOrder returns one PO with lines.
	GetPurchaseOrder(ctx context.Context, poID int) (*core.PurchaseOrder, error)

	// ProcessInvoice runs the full matching pipeline for one invoice and
	// persists the result, the document pair, and any review queue entry.
	ProcessInvoice(ctx context.Context, invoiceID int) (*core.MatchingResult, error)

	// ProcessBatch runs matching for several invoices, collecting per-invoice
	// failures instead of aborting.
	ProcessBatch(ctx context.Context, invoiceIDs []int) (*BatchResult, error)

	// GetMatchingResult returns one stored matching run.
	GetMatchingResult(ctx context.Context, resultID uuid.UUID) (*core.MatchingResult, error)

	// ListReviewQueue returns review work items, critical first.
	ListReviewQueue(ctx context.Context, filter core.ReviewQueueFilter) ([]core.ReviewQueueItem, error)

	// ResolveReviewItem closes a review item and mirrors the outcome onto the
	// invoice.
	ResolveReviewItem(ctx context.Context, queueID uuid.UUID, outcome core.ReviewOutcome, notes string) (*core.ReviewQueueItem, error)

	// CreatePair opens workflow tracking for an (invoice, PO) pairing. The
	// matching pipeline does this automatically; the endpoint exists for
	// re-linking after manual correction. Idempotent per pairing.
	CreatePair(ctx context.Context, invoiceID int, poID *int, matchingResultID uuid.UUID) (*core.DocumentPair, error)

	// ListPairs returns document pairs filtered by workflow position.
	ListPairs(ctx context.Context, filter core.PairFilter) ([]core.DocumentPair, error)

	// GetPair returns one pair with its validation issues.
	GetPair(ctx context.Context, pairID uuid.UUID) (*core.DocumentPair, error)

	// GetPairComparison returns the side-by-side line view for a pair.
	GetPairComparison(ctx context.Context, pairID uuid.UUID) ([]core.LineComparison, error)

	// AdvanceStage moves a pair one workflow stage forward.
	AdvanceStage(ctx context.Context, pairID uuid.UUID) (*core.DocumentPair, error)

	// ResolveIssue closes one validation issue on a pair.
	ResolveIssue(ctx context.Context, req ResolveIssueRequest) (*core.ValidationIssue, error)

	// ApprovePair approves a pair, outstanding issues included.
	ApprovePair(ctx context.Context, pairID uuid.UUID, notes string) (*core.DocumentPair, error)

	// RejectPair rejects a pair without moving its stage.
	RejectPair(ctx context.Context, pairID uuid.UUID, reason string) (*core.DocumentPair, error)
}
