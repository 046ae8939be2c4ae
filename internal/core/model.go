package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IssueCategory is the closed set of discrepancy categories a matching run
// can produce. Stored as-is in the issues JSONB array and on validation_issues.
type IssueCategory string

const (
	MissingReference    IssueCategory = "missing_reference"
	DuplicateInvoice    IssueCategory = "duplicate_invoice"
	VendorMismatch      IssueCategory = "vendor_mismatch"
	TotalMismatch       IssueCategory = "total_mismatch"
	LineCountMismatch   IssueCategory = "line_count_mismatch"
	LineItemDiscrepancy IssueCategory = "line_item_discrepancy"
	CalculationError    IssueCategory = "calculation_error"
	QuantityOverage     IssueCategory = "quantity_overage"
	TaxError            IssueCategory = "tax_error"
	DateAnomaly         IssueCategory = "date_anomaly"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// ParseSeverity normalizes a stored severity label. The deprecated two-tier
// vocabulary from the old matching path ("exception"/"needs_review") is
// accepted on read and folded into the four-level model; nothing writes it.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return Severity(s)
	}
	switch s {
	case "exception":
		return SeverityCritical
	case "needs_review":
		return SeverityMedium
	}
	return SeverityMedium
}

// Rank orders severities for primary-issue selection: critical=0 .. low=3.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	default:
		return 3
	}
}

type MatchStatus string

const (
	StatusMatched     MatchStatus = "matched"
	StatusNeedsReview MatchStatus = "needs_review"
)

// Stage is the forward-only workflow position of a document pair.
type Stage string

const (
	StageMatched   Stage = "matched"
	StageValidated Stage = "validated"
	StageApproved  Stage = "approved"
)

// PairStatus is the independent status axis of a document pair.
type PairStatus string

const (
	PairInProgress  PairStatus = "in_progress"
	PairNeedsReview PairStatus = "needs_review"
	PairApproved    PairStatus = "approved"
	PairRejected    PairStatus = "rejected"
)

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

type ResolutionAction string

const (
	ResolutionAccepted   ResolutionAction = "accepted"
	ResolutionOverridden ResolutionAction = "overridden"
	ResolutionCorrected  ResolutionAction = "corrected"
)

// InvoiceStatus is a derived label mirroring the latest matching/workflow
// outcome. Authoritative workflow state lives on DocumentPair once one exists.
type InvoiceStatus string

const (
	InvoiceNew         InvoiceStatus = "new"
	InvoiceMatched     InvoiceStatus = "matched"
	InvoiceNeedsReview InvoiceStatus = "needs_review"
	InvoiceApproved    InvoiceStatus = "approved"
	InvoiceRejected    InvoiceStatus = "rejected"
	InvoiceCancelled   InvoiceStatus = "cancelled"
)

type Vendor struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type Invoice struct {
	ID            int             `json:"id"`
	InvoiceNumber string          `json:"invoice_number"`
	VendorID      *int            `json:"vendor_id,omitempty"`
	PONumber      *string         `json:"po_number,omitempty"`
	InvoiceDate   *time.Time      `json:"invoice_date,omitempty"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Currency      string          `json:"currency"`
	Status        InvoiceStatus   `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	Lines         []InvoiceLine   `json:"lines"`
}

type InvoiceLine struct {
	ID          int             `json:"id"`
	InvoiceID   int             `json:"invoice_id"`
	LineNo      int             `json:"line_no"`
	SKU         string          `json:"sku,omitempty"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type PurchaseOrder struct {
	ID          int             `json:"id"`
	PONumber    string          `json:"po_number"`
	VendorID    int             `json:"vendor_id"`
	OrderDate   *time.Time      `json:"order_date,omitempty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Currency    string          `json:"currency"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	Lines       []POLine        `json:"lines"`
}

type POLine struct {
	ID          int             `json:"id"`
	POID        int             `json:"po_id"`
	LineNo      int             `json:"line_no"`
	SKU         string          `json:"sku,omitempty"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// MatchingIssue is one finding from a matching run. The json shape below is
// the wire/storage contract: issues are persisted as a JSONB array of exactly
// these objects and projected 1:1 into ValidationIssue rows.
type MatchingIssue struct {
	Category   IssueCategory  `json:"category"`
	Severity   Severity       `json:"severity"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details"`
	LineNumber *int           `json:"line_number,omitempty"`
}

// MatchingResult is an immutable snapshot of one matching run. Re-running
// matching for an invoice inserts a new row rather than mutating an old one.
type MatchingResult struct {
	ID         uuid.UUID       `json:"id"`
	InvoiceID  int             `json:"invoice_id"`
	POID       *int            `json:"po_id,omitempty"`
	Status     MatchStatus     `json:"match_status"`
	Confidence float64         `json:"confidence_score"`
	Issues     []MatchingIssue `json:"issues"`
	Rationale  string          `json:"reasoning"`
	MatchedBy  string          `json:"matched_by"`
	MatchedAt  time.Time       `json:"matched_at"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ValidationIssue is the resolvable projection of one MatchingIssue, owned by
// a DocumentPair.
type ValidationIssue struct {
	ID         uuid.UUID      `json:"id"`
	PairID     uuid.UUID      `json:"document_pair_id"`
	Category   IssueCategory  `json:"category"`
	Severity   Severity       `json:"severity"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details"`
	LineNumber *int           `json:"line_number,omitempty"`

	Resolved         bool              `json:"resolved"`
	ResolvedBy       *string           `json:"resolved_by,omitempty"`
	ResolvedAt       *time.Time        `json:"resolved_at,omitempty"`
	ResolutionAction *ResolutionAction `json:"resolution_action,omitempty"`
	ResolutionNotes  *string           `json:"resolution_notes,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// DocumentPair tracks one (invoice, PO) pairing through the workflow.
// Unique per (invoice_id, po_id).
type DocumentPair struct {
	ID               uuid.UUID  `json:"id"`
	InvoiceID        int        `json:"invoice_id"`
	POID             *int       `json:"po_id,omitempty"`
	MatchingResultID uuid.UUID  `json:"matching_result_id"`
	CurrentStage     Stage      `json:"current_stage"`
	OverallStatus    PairStatus `json:"overall_status"`

	RequiresReview    bool `json:"requires_review"`
	HasCriticalIssues bool `json:"has_critical_issues"`

	ResolutionNotes *string `json:"resolution_notes,omitempty"`

	MatchedAt   time.Time  `json:"matched_at"`
	ValidatedAt *time.Time `json:"validated_at,omitempty"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Issues []ValidationIssue `json:"validation_issues,omitempty"`
}

// ReviewQueueItem is one open work item per needs-review MatchingResult.
// An item with no ResolvedAt is open; at most one open item exists per result.
type ReviewQueueItem struct {
	ID               uuid.UUID     `json:"id"`
	MatchingResultID uuid.UUID     `json:"matching_result_id"`
	Priority         Priority      `json:"priority"`
	IssueCategory    IssueCategory `json:"issue_category"`
	AssignedTo       *string       `json:"assigned_to,omitempty"`
	SLADeadline      time.Time     `json:"sla_deadline"`
	CreatedAt        time.Time     `json:"created_at"`
	ResolvedAt       *time.Time    `json:"resolved_at,omitempty"`
	ResolutionNotes  *string       `json:"resolution_notes,omitempty"`
}
