package app

import (
	"time"

	"ap-reconciler/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateInvoiceRequest is the input for recording an incoming invoice.
type CreateInvoiceRequest struct {
	InvoiceNumber string
	VendorID      *int
	PONumber      string // vendor-supplied PO reference, may be empty
	InvoiceDate   *time.Time
	TotalAmount   decimal.Decimal
	Currency      string
	Lines         []LineInput
}

// CreatePORequest is the input for recording a purchase order.
type CreatePORequest struct {
	PONumber    string
	VendorID    int
	OrderDate   *time.Time
	TotalAmount decimal.Decimal
	Currency    string
	Lines       []LineInput
}

// LineInput is a single line within an invoice or PO request.
type LineInput struct {
	SKU         string
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// ResolveIssueRequest is the input for closing one validation issue.
type ResolveIssueRequest struct {
	PairID     uuid.UUID
	IssueID    uuid.UUID
	Action     core.ResolutionAction
	Notes      string
	ResolvedBy string
}
