package core_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"ap-reconciler/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	// Set TEST_DATABASE_URL in your .env or environment to run integration tests.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	schema, err := os.ReadFile("../../migrations/001_init.sql")
	if err != nil {
		t.Fatalf("Failed to read schema: %v", err)
	}
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		t.Fatalf("Failed to apply schema: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE review_queue, validation_issues, document_pairs, matching_results,
		               po_lines, purchase_orders, invoice_lines, invoices, vendors CASCADE;
	`)
	if err != nil {
		t.Fatalf("Failed to clean test database: %v", err)
	}

	return pool
}

type fixture struct {
	pool     *pgxpool.Pool
	vendors  core.VendorService
	invoices core.InvoiceService
	orders   core.PurchaseOrderService
	pairs    core.PairService
	queue    core.ReviewQueueService
	matching core.MatchingService
}

func newFixture(pool *pgxpool.Pool) *fixture {
	f := &fixture{
		pool:     pool,
		vendors:  core.NewVendorService(pool),
		invoices: core.NewInvoiceService(pool),
		orders:   core.NewPurchaseOrderService(pool),
		pairs:    core.NewPairService(pool),
		queue:    core.NewReviewQueueService(pool),
	}
	f.matching = core.NewMatchingService(pool, f.invoices, f.orders, f.pairs, f.queue, nil)
	return f
}

func (f *fixture) seedVendor(t *testing.T, ctx context.Context, name string) *core.Vendor {
	t.Helper()
	v, err := f.vendors.CreateVendor(ctx, name, "")
	if err != nil {
		t.Fatalf("seed vendor: %v", err)
	}
	return v
}

func (f *fixture) seedPO(t *testing.T, ctx context.Context, vendorID int, poNumber, total string, lines []core.POLineInput) *core.PurchaseOrder {
	t.Helper()
	po, err := f.orders.CreatePO(ctx, core.POInput{
		PONumber:    poNumber,
		VendorID:    vendorID,
		OrderDate:   datePtr("2026-03-01"),
		TotalAmount: dec(total),
		Currency:    "USD",
		Lines:       lines,
	})
	if err != nil {
		t.Fatalf("seed PO: %v", err)
	}
	return po
}

func (f *fixture) seedInvoice(t *testing.T, ctx context.Context, vendorID int, number, poNumber, total string, lines []core.InvoiceLineInput) *core.Invoice {
	t.Helper()
	input := core.InvoiceInput{
		InvoiceNumber: number,
		VendorID:      &vendorID,
		InvoiceDate:   datePtr("2026-03-10"),
		TotalAmount:   dec(total),
		Currency:      "USD",
		Lines:         lines,
	}
	if poNumber != "" {
		input.PONumber = &poNumber
	}
	inv, err := f.invoices.CreateInvoice(ctx, input)
	if err != nil {
		t.Fatalf("seed invoice: %v", err)
	}
	return inv
}

func TestMatching_CleanInvoice(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()
	f := newFixture(pool)

	vendor := f.seedVendor(t, ctx, "Acme Industrial")
	f.seedPO(t, ctx, vendor.ID, "PO-100", "500.00", []core.POLineInput{
		{SKU: "WID-1", Description: "widget", Quantity: dec("10"), UnitPrice: dec("50.00")},
	})
	inv := f.seedInvoice(t, ctx, vendor.ID, "INV-1", "PO-100", "500.00", []core.InvoiceLineInput{
		{SKU: "WID-1", Description: "widget", Quantity: dec("10"), UnitPrice: dec("50.00")},
	})

	result, err := f.matching.Process(ctx, inv.ID)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Status != core.StatusMatched {
		t.Errorf("status = %s, want matched (issues: %v)", result.Status, result.Issues)
	}
	if result.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", result.Confidence)
	}
	if result.Rationale == "" {
		t.Error("expected a fallback rationale")
	}

	// The pair is created in_progress and the invoice flips to matched.
	pairs, err := f.pairs.ListPairs(ctx, core.PairFilter{})
	if err != nil {
		t.Fatalf("ListPairs: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(pairs))
	}
	if pairs[0].OverallStatus != core.PairInProgress || pairs[0].CurrentStage != core.StageMatched {
		t.Errorf("pair = %s/%s, want in_progress/matched", pairs[0].OverallStatus, pairs[0].CurrentStage)
	}
	if pairs[0].RequiresReview {
		t.Error("clean pair should not require review")
	}

	got, err := f.invoices.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if got.Status != core.InvoiceMatched {
		t.Errorf("invoice status = %s, want matched", got.Status)
	}

	// A clean match never enters the review queue.
	items, err := f.queue.ListQueue(ctx, core.ReviewQueueFilter{})
	if err != nil {
		t.Fatalf("ListQueue: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected empty queue, got %d items", len(items))
	}
}

func TestMatching_PriceMismatchNeedsReview(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()
	f := newFixture(pool)

	vendor := f.seedVendor(t, ctx, "Acme Industrial")
	f.seedPO(t, ctx, vendor.ID, "PO-100", "500.00", []core.POLineInput{
		{SKU: "WID-1", Description: "widget", Quantity: dec("10"), UnitPrice: dec("50.00")},
	})
	// Unit price up 10%: total mismatch (high, >5%) plus a line discrepancy.
	inv := f.seedInvoice(t, ctx, vendor.ID, "INV-1", "PO-100", "550.00", []core.InvoiceLineInput{
		{SKU: "WID-1", Description: "widget", Quantity: dec("10"), UnitPrice: dec("55.00")},
	})

	result, err := f.matching.Process(ctx, inv.ID)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Status != core.StatusNeedsReview {
		t.Fatalf("status = %s, want needs_review", result.Status)
	}
	if result.Confidence >= 1.0 || result.Confidence < 0 {
		t.Errorf("confidence = %v, want in [0,1)", result.Confidence)
	}
	findIssue(t, result.Issues, core.TotalMismatch)

	// Queued at high priority (total variance above 5%).
	items, err := f.queue.ListQueue(ctx, core.ReviewQueueFilter{Status: "pending"})
	if err != nil {
		t.Fatalf("ListQueue: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 queue item, got %d", len(items))
	}
	if items[0].Priority != core.PriorityHigh {
		t.Errorf("priority = %s, want high", items[0].Priority)
	}
	if !items[0].SLADeadline.After(items[0].CreatedAt) {
		t.Error("sla_deadline should be after created_at")
	}

	// The pair mirrors the review state and owns the copied issues.
	pairs, err := f.pairs.ListPairs(ctx, core.PairFilter{Status: core.PairNeedsReview})
	if err != nil {
		t.Fatalf("ListPairs: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("expected 1 needs_review pair, got %d", len(pairs))
	}
	pair, err := f.pairs.GetPair(ctx, pairs[0].ID)
	if err != nil {
		t.Fatalf("GetPair: %v", err)
	}
	if !pair.RequiresReview {
		t.Error("pair should require review")
	}
	if len(pair.Issues) != len(result.Issues) {
		t.Errorf("pair owns %d issues, result has %d", len(pair.Issues), len(result.Issues))
	}
}

func TestMatching_ReprocessIsIdempotentOnPairAndQueue(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()
	f := newFixture(pool)

	vendor := f.seedVendor(t, ctx, "Acme Industrial")
	f.seedPO(t, ctx, vendor.ID, "PO-100", "500.00", []core.POLineInput{
		{SKU: "WID-1", Description: "widget", Quantity: dec("10"), UnitPrice: dec("50.00")},
	})
	inv := f.seedInvoice(t, ctx, vendor.ID, "INV-1", "PO-100", "550.00", []core.InvoiceLineInput{
		{SKU: "WID-1", Description: "widget", Quantity: dec("10"), UnitPrice: dec("55.00")},
	})

	first, err := f.matching.Process(ctx, inv.ID)
	if err != nil {
		t.Fatalf("first Process: %v", err)
	}
	second, err := f.matching.Process(ctx, inv.ID)
	if err != nil {
		t.Fatalf("second Process: %v", err)
	}
	if first.ID == second.ID {
		t.Error("each run must produce a fresh immutable result")
	}

	// Results accumulate, but pair and open queue item converge to one each.
	var results int
	if err := pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM matching_results WHERE invoice_id = $1", inv.ID,
	).Scan(&results); err != nil {
		t.Fatalf("count results: %v", err)
	}
	if results != 2 {
		t.Errorf("expected 2 stored results, got %d", results)
	}

	pairs, err := f.pairs.ListPairs(ctx, core.PairFilter{})
	if err != nil {
		t.Fatalf("ListPairs: %v", err)
	}
	if len(pairs) != 1 {
		t.Errorf("expected 1 pair after reprocess, got %d", len(pairs))
	}

	items, err := f.queue.ListQueue(ctx, core.ReviewQueueFilter{Status: "pending"})
	if err != nil {
		t.Fatalf("ListQueue: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("expected 1 open queue item after reprocess, got %d", len(items))
	}
}

func TestMatching_MissingAndUnresolvedPOReference(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()
	f := newFixture(pool)

	vendor := f.seedVendor(t, ctx, "Acme Industrial")

	noRef := f.seedInvoice(t, ctx, vendor.ID, "INV-1", "", "100.00", []core.InvoiceLineInput{
		{Description: "widget", Quantity: dec("1"), UnitPrice: dec("100.00")},
	})
	result, err := f.matching.Process(ctx, noRef.ID)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Status != core.StatusNeedsReview || result.Confidence != 0 {
		t.Errorf("got %s/%v, want needs_review at zero confidence", result.Status, result.Confidence)
	}
	if len(result.Issues) != 1 || result.Issues[0].Category != core.MissingReference {
		t.Errorf("issues = %v, want single missing_reference", categories(result.Issues))
	}
	if result.POID != nil {
		t.Error("po_id should be nil when the reference is missing")
	}

	danglingRef := f.seedInvoice(t, ctx, vendor.ID, "INV-2", "PO-NOPE", "100.00", []core.InvoiceLineInput{
		{Description: "widget", Quantity: dec("1"), UnitPrice: dec("100.00")},
	})
	result, err = f.matching.Process(ctx, danglingRef.ID)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(result.Issues) != 1 || result.Issues[0].Category != core.MissingReference {
		t.Errorf("issues = %v, want single missing_reference for dangling PO", categories(result.Issues))
	}

	// Critical queue priority for reference problems.
	items, err := f.queue.ListQueue(ctx, core.ReviewQueueFilter{Priority: core.PriorityCritical})
	if err != nil {
		t.Fatalf("ListQueue: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("expected 2 critical items, got %d", len(items))
	}
}

func TestMatching_DuplicateInvoiceNumber(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()
	f := newFixture(pool)

	vendor := f.seedVendor(t, ctx, "Acme Industrial")
	f.seedPO(t, ctx, vendor.ID, "PO-100", "500.00", []core.POLineInput{
		{SKU: "WID-1", Description: "widget", Quantity: dec("10"), UnitPrice: dec("50.00")},
	})

	lines := []core.InvoiceLineInput{
		{SKU: "WID-1", Description: "widget", Quantity: dec("10"), UnitPrice: dec("50.00")},
	}
	first := f.seedInvoice(t, ctx, vendor.ID, "INV-1", "PO-100", "500.00", lines)
	if _, err := f.matching.Process(ctx, first.ID); err != nil {
		t.Fatalf("Process first: %v", err)
	}

	// Same invoice number, same vendor, submitted again as a new row.
	resubmission := f.seedInvoice(t, ctx, vendor.ID, "INV-1", "PO-100", "500.00", lines)
	result, err := f.matching.Process(ctx, resubmission.ID)
	if err != nil {
		t.Fatalf("Process resubmission: %v", err)
	}
	dup := findIssue(t, result.Issues, core.DuplicateInvoice)
	if dup.Severity != core.SeverityCritical {
		t.Errorf("duplicate severity = %s, want critical", dup.Severity)
	}
	if result.Status != core.StatusNeedsReview || result.Confidence != 0 {
		t.Errorf("got %s/%v, want needs_review at zero confidence", result.Status, result.Confidence)
	}
}

func TestMatching_GetResultRoundTrip(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()
	f := newFixture(pool)

	vendor := f.seedVendor(t, ctx, "Acme Industrial")
	inv := f.seedInvoice(t, ctx, vendor.ID, "INV-1", "", "100.00", []core.InvoiceLineInput{
		{Description: "widget", Quantity: dec("1"), UnitPrice: dec("100.00")},
	})
	result, err := f.matching.Process(ctx, inv.ID)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	got, err := f.matching.GetResult(ctx, result.ID)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if got.Status != result.Status || got.InvoiceID != inv.ID {
		t.Errorf("round trip changed the result: %+v", got)
	}
	if len(got.Issues) != 1 || got.Issues[0].Category != core.MissingReference {
		t.Errorf("issues lost in round trip: %v", categories(got.Issues))
	}
}

func TestMatching_ProcessBatch(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()
	f := newFixture(pool)

	vendor := f.seedVendor(t, ctx, "Acme Industrial")
	inv := f.seedInvoice(t, ctx, vendor.ID, "INV-1", "", "100.00", []core.InvoiceLineInput{
		{Description: "widget", Quantity: dec("1"), UnitPrice: dec("100.00")},
	})

	results, failures, err := f.matching.ProcessBatch(ctx, []int{inv.ID, 999999})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if len(results) != 1 || len(failures) != 1 {
		t.Fatalf("got %d results / %d failures, want 1/1", len(results), len(failures))
	}
	if failures[0].InvoiceID != 999999 {
		t.Errorf("failed id = %d, want 999999", failures[0].InvoiceID)
	}

	if _, _, err := f.matching.ProcessBatch(ctx, nil); !errors.Is(err, core.ErrInvalidRequest) {
		t.Errorf("empty batch error = %v, want ErrInvalidRequest", err)
	}
}
