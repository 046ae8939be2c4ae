package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RationaleGenerator produces the free-text explanation attached to a
// MatchingResult. Implementations are best-effort collaborators: the caller
// tolerates any error and substitutes FallbackRationale, and the generated
// text never influences the deterministic outcome.
type RationaleGenerator interface {
	GenerateRationale(ctx context.Context, inv *Invoice, po *PurchaseOrder, issues []MatchingIssue) (string, error)
}

// BatchError reports one failed invoice inside an otherwise successful batch.
type BatchError struct {
	InvoiceID int    `json:"invoice_id"`
	Error     string `json:"error"`
}

type MatchingService interface {
	// Process runs the full matching pipeline for one invoice: header
	// decision tree, line matching, calculation checks, scoring, rationale,
	// persistence, pair creation, and review-queue routing. Each run inserts
	// a fresh immutable MatchingResult.
	Process(ctx context.Context, invoiceID int) (*MatchingResult, error)

	// ProcessBatch processes invoice ids strictly sequentially, capturing
	// per-item failures without aborting. An empty id list is an
	// ErrInvalidRequest; individual failures never are.
	ProcessBatch(ctx context.Context, invoiceIDs []int) ([]MatchingResult, []BatchError, error)

	// GetResult returns a matching result snapshot by id.
	GetResult(ctx context.Context, resultID uuid.UUID) (*MatchingResult, error)
}

type matchingService struct {
	pool      *pgxpool.Pool
	invoices  InvoiceService
	orders    PurchaseOrderService
	pairs     PairService
	queue     ReviewQueueService
	rationale RationaleGenerator
}

// NewMatchingService constructs the matching pipeline. rationale may be nil,
// in which case every result carries the deterministic fallback summary.
func NewMatchingService(
	pool *pgxpool.Pool,
	invoices InvoiceService,
	orders PurchaseOrderService,
	pairs PairService,
	queue ReviewQueueService,
	rationale RationaleGenerator,
) MatchingService {
	return &matchingService{
		pool:      pool,
		invoices:  invoices,
		orders:    orders,
		pairs:     pairs,
		queue:     queue,
		rationale: rationale,
	}
}

func (s *matchingService) Process(ctx context.Context, invoiceID int) (*MatchingResult, error) {
	inv, err := s.invoices.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	var po *PurchaseOrder
	if inv.PONumber != nil {
		po, err = s.orders.FindByNumber(ctx, *inv.PONumber)
		if err != nil {
			return nil, err
		}
	}

	dup, err := s.findDuplicate(ctx, inv)
	if err != nil {
		return nil, err
	}

	issues := ValidateHeader(inv, po, dup)
	if !HasCritical(issues) {
		_, lineIssues := MatchLineItems(inv.Lines, po.Lines)
		issues = append(issues, lineIssues...)
		issues = append(issues, ValidateCalculations(inv, po)...)
	}

	status, confidence := ScoreIssues(issues)
	rationale := s.generateRationale(ctx, inv, po, issues)

	result, err := s.saveResult(ctx, inv, po, status, confidence, issues, rationale)
	if err != nil {
		return nil, err
	}

	if po != nil {
		if _, err := s.pairs.CreatePair(ctx, inv.ID, &po.ID, result.ID); err != nil {
			return nil, fmt.Errorf("create document pair: %w", err)
		}
	}
	if status == StatusNeedsReview {
		if _, err := s.queue.AddToQueue(ctx, result); err != nil {
			return nil, fmt.Errorf("add to review queue: %w", err)
		}
	}

	return result, nil
}

func (s *matchingService) ProcessBatch(ctx context.Context, invoiceIDs []int) ([]MatchingResult, []BatchError, error) {
	if len(invoiceIDs) == 0 {
		return nil, nil, fmt.Errorf("%w: empty invoice id list", ErrInvalidRequest)
	}

	var results []MatchingResult
	var batchErrs []BatchError
	for _, id := range invoiceIDs {
		result, err := s.Process(ctx, id)
		if err != nil {
			batchErrs = append(batchErrs, BatchError{InvoiceID: id, Error: err.Error()})
			continue
		}
		results = append(results, *result)
	}
	return results, batchErrs, nil
}

func (s *matchingService) GetResult(ctx context.Context, resultID uuid.UUID) (*MatchingResult, error) {
	result := &MatchingResult{}
	var issuesJSON []byte
	if err := s.pool.QueryRow(ctx, `
		SELECT id, invoice_id, po_id, match_status, confidence_score, issues,
		       COALESCE(reasoning, ''), matched_by, matched_at, created_at
		FROM matching_results
		WHERE id = $1`,
		resultID,
	).Scan(
		&result.ID, &result.InvoiceID, &result.POID, &result.Status, &result.Confidence,
		&issuesJSON, &result.Rationale, &result.MatchedBy, &result.MatchedAt, &result.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: matching result %s", ErrNotFound, resultID)
		}
		return nil, fmt.Errorf("get matching result %s: %w", resultID, err)
	}

	issues, err := DecodeIssues(issuesJSON)
	if err != nil {
		return nil, fmt.Errorf("matching result %s: %w", resultID, err)
	}
	result.Issues = issues
	return result, nil
}

// findDuplicate looks for another non-cancelled invoice with the same
// invoice number and vendor. This is a plain existence check; the partial
// unique indexes on pairs and the queue keep concurrent racers convergent.
func (s *matchingService) findDuplicate(ctx context.Context, inv *Invoice) (*DuplicateRef, error) {
	if inv.VendorID == nil {
		return nil, nil
	}
	var existingID int
	err := s.pool.QueryRow(ctx, `
		SELECT id FROM invoices
		WHERE invoice_number = $1 AND vendor_id = $2 AND id <> $3
		  AND status NOT IN ('cancelled', 'rejected')
		ORDER BY id
		LIMIT 1`,
		inv.InvoiceNumber, *inv.VendorID, inv.ID,
	).Scan(&existingID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("duplicate invoice check: %w", err)
	}
	return &DuplicateRef{InvoiceID: existingID}, nil
}

func (s *matchingService) generateRationale(ctx context.Context, inv *Invoice, po *PurchaseOrder, issues []MatchingIssue) string {
	if s.rationale == nil {
		return FallbackRationale(issues)
	}
	text, err := s.rationale.GenerateRationale(ctx, inv, po, issues)
	if err != nil || strings.TrimSpace(text) == "" {
		return FallbackRationale(issues)
	}
	return text
}

// FallbackRationale is the deterministic summary used when no rationale
// generator is configured or the call fails.
func FallbackRationale(issues []MatchingIssue) string {
	if len(issues) == 0 {
		return "All validation checks passed."
	}
	return fmt.Sprintf("Automated validation found %d issue(s). Manual review recommended.", len(issues))
}

// saveResult persists the immutable snapshot and mirrors the outcome onto
// the invoice's derived status in the same transaction.
func (s *matchingService) saveResult(
	ctx context.Context,
	inv *Invoice,
	po *PurchaseOrder,
	status MatchStatus,
	confidence float64,
	issues []MatchingIssue,
	rationale string,
) (*MatchingResult, error) {
	issuesJSON, err := EncodeIssues(issues)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	result := &MatchingResult{
		ID:         uuid.New(),
		InvoiceID:  inv.ID,
		Status:     status,
		Confidence: confidence,
		Issues:     issues,
		Rationale:  rationale,
		MatchedBy:  "engine",
	}
	if po != nil {
		poID := po.ID
		result.POID = &poID
	}

	if err := tx.QueryRow(ctx, `
		INSERT INTO matching_results (id, invoice_id, po_id, match_status, confidence_score,
		                              issues, reasoning, matched_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING matched_at, created_at`,
		result.ID, result.InvoiceID, result.POID, result.Status, result.Confidence,
		issuesJSON, result.Rationale, result.MatchedBy,
	).Scan(&result.MatchedAt, &result.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert matching result: %w", err)
	}

	invoiceStatus := InvoiceMatched
	if status == StatusNeedsReview {
		invoiceStatus = InvoiceNeedsReview
	}
	if _, err := tx.Exec(ctx,
		"UPDATE invoices SET status = $1, updated_at = NOW() WHERE id = $2",
		invoiceStatus, inv.ID,
	); err != nil {
		return nil, fmt.Errorf("update invoice %d status: %w", inv.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit matching result: %w", err)
	}
	return result, nil
}

// EncodeIssues serializes issues into the persisted JSONB array shape:
// {category, severity, message, details, line_number?}.
func EncodeIssues(issues []MatchingIssue) ([]byte, error) {
	if issues == nil {
		issues = []MatchingIssue{}
	}
	b, err := json.Marshal(issues)
	if err != nil {
		return nil, fmt.Errorf("encode issues: %w", err)
	}
	return b, nil
}

// DecodeIssues parses a persisted issue array, normalizing any legacy
// severity labels on the way in.
func DecodeIssues(raw []byte) ([]MatchingIssue, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var issues []MatchingIssue
	if err := json.Unmarshal(raw, &issues); err != nil {
		return nil, fmt.Errorf("decode issues: %w", err)
	}
	for i := range issues {
		issues[i].Severity = ParseSeverity(string(issues[i].Severity))
	}
	return issues, nil
}
