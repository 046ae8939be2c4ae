package core_test

import (
	"testing"

	"ap-reconciler/internal/core"
)

func invLine(no int, sku, desc, qty, price string) core.InvoiceLine {
	return core.InvoiceLine{LineNo: no, SKU: sku, Description: desc, Quantity: dec(qty), UnitPrice: dec(price)}
}

func poLine(no int, sku, desc, qty, price string) core.POLine {
	return core.POLine{LineNo: no, SKU: sku, Description: desc, Quantity: dec(qty), UnitPrice: dec(price)}
}

func TestMatchLineItems_SKUWinsOverBetterDescription(t *testing.T) {
	// The SKU hit pairs with a PO line whose description is entirely
	// different; the identical-description candidate must not steal it.
	invLines := []core.InvoiceLine{
		invLine(1, "WID-42", "industrial widget", "10", "5.00"),
	}
	poLines := []core.POLine{
		poLine(1, "", "industrial widget", "10", "5.00"),
		poLine(2, "WID-42", "spare part assembly", "10", "5.00"),
	}

	pairings, _ := core.MatchLineItems(invLines, poLines)
	if len(pairings) != 1 {
		t.Fatalf("expected 1 pairing, got %d", len(pairings))
	}
	p := pairings[0]
	if p.Method != core.MatchBySKU || p.Score != 1.0 {
		t.Errorf("got method %s score %.2f, want sku at 1.0", p.Method, p.Score)
	}
	if p.POLine.LineNo != 2 {
		t.Errorf("paired with PO line %d, want 2 (the SKU hit)", p.POLine.LineNo)
	}
}

func TestMatchLineItems_ExactDescription(t *testing.T) {
	invLines := []core.InvoiceLine{
		invLine(1, "", "  Industrial   Widget ", "10", "5.00"),
	}
	poLines := []core.POLine{
		poLine(1, "", "industrial widget", "10", "5.00"),
	}

	pairings, issues := core.MatchLineItems(invLines, poLines)
	if len(pairings) != 1 {
		t.Fatalf("expected 1 pairing, got %d", len(pairings))
	}
	if pairings[0].Method != core.MatchByDescription || pairings[0].Score != 0.95 {
		t.Errorf("got method %s score %.2f, want description at 0.95", pairings[0].Method, pairings[0].Score)
	}
	if len(issues) != 0 {
		t.Errorf("expected no issues, got %v", categories(issues))
	}
}

func TestMatchLineItems_FuzzyWithBonuses(t *testing.T) {
	// "blue widget large" vs "blue widget xl" is similar but not equal;
	// matching quantity and price add 0.10 each.
	invLines := []core.InvoiceLine{
		invLine(1, "", "blue widget large", "10", "5.00"),
	}
	poLines := []core.POLine{
		poLine(1, "", "blue widget xlrge", "10", "5.00"),
	}

	pairings, _ := core.MatchLineItems(invLines, poLines)
	if len(pairings) != 1 {
		t.Fatalf("expected 1 pairing, got %d", len(pairings))
	}
	p := pairings[0]
	if p.Method != core.MatchByFuzzy {
		t.Fatalf("method = %s, want fuzzy", p.Method)
	}
	base := core.SimilarityRatio("blue widget large", "blue widget xlrge")
	want := base + 0.20
	if diff := p.Score - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("score = %.4f, want ratio %.4f plus both bonuses", p.Score, want)
	}
}

func TestMatchLineItems_SubstringFallback(t *testing.T) {
	// Low edit similarity, but one description contains the other.
	invLines := []core.InvoiceLine{
		invLine(1, "", "bolt", "10", "1.00"),
	}
	poLines := []core.POLine{
		poLine(1, "", "bolt hex head stainless m8", "10", "1.00"),
	}

	pairings, _ := core.MatchLineItems(invLines, poLines)
	if len(pairings) != 1 {
		t.Fatalf("expected 1 pairing, got %d", len(pairings))
	}
	p := pairings[0]
	if p.Method != core.MatchBySubstring {
		t.Fatalf("method = %s, want substring", p.Method)
	}
	want := float64(len("bolt")) / float64(len("bolt hex head stainless m8"))
	if diff := p.Score - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("score = %.4f, want min/max length ratio %.4f", p.Score, want)
	}
}

func TestMatchLineItems_POLineConsumedOnce(t *testing.T) {
	// Two identical invoice lines, one PO line: the second invoice line must
	// be reported unmatched rather than reusing the consumed PO line.
	invLines := []core.InvoiceLine{
		invLine(1, "", "widget", "5", "2.00"),
		invLine(2, "", "widget", "5", "2.00"),
	}
	poLines := []core.POLine{
		poLine(1, "", "widget", "5", "2.00"),
	}

	pairings, issues := core.MatchLineItems(invLines, poLines)
	if len(pairings) != 1 {
		t.Fatalf("expected 1 pairing, got %d", len(pairings))
	}

	findIssue(t, issues, core.LineCountMismatch)
	unmatched := findIssue(t, issues, core.LineItemDiscrepancy)
	if unmatched.Severity != core.SeverityHigh {
		t.Errorf("unmatched invoice line severity = %s, want high", unmatched.Severity)
	}
	if unmatched.LineNumber == nil || *unmatched.LineNumber != 2 {
		t.Errorf("unmatched line number = %v, want 2", unmatched.LineNumber)
	}
}

func TestMatchLineItems_UnmatchedPOLineIsMedium(t *testing.T) {
	invLines := []core.InvoiceLine{
		invLine(1, "", "widget", "5", "2.00"),
	}
	poLines := []core.POLine{
		poLine(1, "", "widget", "5", "2.00"),
		poLine(2, "", "entirely unrelated product zzz", "1", "9.00"),
	}

	_, issues := core.MatchLineItems(invLines, poLines)
	findIssue(t, issues, core.LineCountMismatch)
	var poIssue *core.MatchingIssue
	for i := range issues {
		if issues[i].Category == core.LineItemDiscrepancy {
			poIssue = &issues[i]
		}
	}
	if poIssue == nil {
		t.Fatal("expected a line_item_discrepancy for the leftover PO line")
	}
	if poIssue.Severity != core.SeverityMedium {
		t.Errorf("leftover PO line severity = %s, want medium", poIssue.Severity)
	}
}

func TestMatchLineItems_QuantityOverage(t *testing.T) {
	invLines := []core.InvoiceLine{
		invLine(1, "WID-1", "widget", "12", "2.00"),
	}
	poLines := []core.POLine{
		poLine(1, "WID-1", "widget", "10", "2.00"),
	}

	_, issues := core.MatchLineItems(invLines, poLines)
	it := findIssue(t, issues, core.QuantityOverage)
	if it.Severity != core.SeverityHigh {
		t.Errorf("quantity_overage severity = %s, want high", it.Severity)
	}
	if it.Details["overage"] != "2" {
		t.Errorf("overage detail = %v, want 2", it.Details["overage"])
	}
}

func TestMatchLineItems_QuantityUnderageIsMedium(t *testing.T) {
	invLines := []core.InvoiceLine{
		invLine(1, "WID-1", "widget", "8", "2.00"),
	}
	poLines := []core.POLine{
		poLine(1, "WID-1", "widget", "10", "2.00"),
	}

	_, issues := core.MatchLineItems(invLines, poLines)
	it := findIssue(t, issues, core.LineItemDiscrepancy)
	if it.Severity != core.SeverityMedium {
		t.Errorf("underage severity = %s, want medium", it.Severity)
	}
}

func TestMatchLineItems_PriceMismatchIsHigh(t *testing.T) {
	invLines := []core.InvoiceLine{
		invLine(1, "WID-1", "widget", "10", "2.50"),
	}
	poLines := []core.POLine{
		poLine(1, "WID-1", "widget", "10", "2.00"),
	}

	_, issues := core.MatchLineItems(invLines, poLines)
	it := findIssue(t, issues, core.LineItemDiscrepancy)
	if it.Severity != core.SeverityHigh {
		t.Errorf("price mismatch severity = %s, want high", it.Severity)
	}
	if it.Details["field"] != "unit_price" {
		t.Errorf("field detail = %v, want unit_price", it.Details["field"])
	}
}

func TestMatchLineItems_SKUMismatchOnFuzzyPairing(t *testing.T) {
	// Fuzzy-paired lines with differing non-empty SKUs get a medium finding.
	invLines := []core.InvoiceLine{
		invLine(1, "AAA-1", "blue widget large", "10", "5.00"),
	}
	poLines := []core.POLine{
		poLine(1, "BBB-2", "blue widget xlrge", "10", "5.00"),
	}

	_, issues := core.MatchLineItems(invLines, poLines)
	it := findIssue(t, issues, core.LineItemDiscrepancy)
	if it.Severity != core.SeverityMedium {
		t.Errorf("sku mismatch severity = %s, want medium", it.Severity)
	}
	if it.Details["field"] != "sku" {
		t.Errorf("field detail = %v, want sku", it.Details["field"])
	}
}

func TestSimilarityRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"", "widget", 0},
		{"widget", "", 0},
		{"widget", "widget", 1},
		{"abcd", "abce", 0.75},
	}
	for _, tc := range tests {
		if got := core.SimilarityRatio(tc.a, tc.b); got != tc.want {
			t.Errorf("SimilarityRatio(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}
