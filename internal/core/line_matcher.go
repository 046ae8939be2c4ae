package core

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"
)

// fuzzyThreshold is the minimum description similarity for a fuzzy pairing.
const fuzzyThreshold = 0.70

// matchBonus is added to a fuzzy score once per satisfied bonus rule
// (quantities within 10%, unit prices within 5%).
const matchBonus = 0.10

// MatchMethod records how an invoice line was paired to a PO line.
type MatchMethod string

const (
	MatchBySKU         MatchMethod = "sku"
	MatchByDescription MatchMethod = "description"
	MatchByFuzzy       MatchMethod = "fuzzy"
	MatchBySubstring   MatchMethod = "substring"
)

// LinePairing is one accepted invoice-line to PO-line assignment.
type LinePairing struct {
	InvoiceLine *InvoiceLine
	POLine      *POLine
	Score       float64
	Method      MatchMethod
}

// MatchLineItems pairs invoice lines to PO lines 1:1 and reports per-line
// discrepancies. Each PO line is consumed by at most one pairing. Evaluation
// per invoice line, against the still-unmatched PO lines:
//
//  1. exact SKU equality (both non-empty) wins outright, score 1.0;
//  2. case/whitespace-insensitive description equality scores 0.95;
//  3. similarity ratio >= 0.70 scores ratio plus quantity/price bonuses;
//  4. substring containment scores min(len)/max(len).
//
// The highest-scoring candidate is accepted. Lines left without a partner on
// either side each raise a line_item_discrepancy.
func MatchLineItems(invLines []InvoiceLine, poLines []POLine) ([]LinePairing, []MatchingIssue) {
	var issues []MatchingIssue

	if len(invLines) != len(poLines) {
		issues = append(issues, MatchingIssue{
			Category: LineCountMismatch,
			Severity: SeverityHigh,
			Message: fmt.Sprintf("invoice has %d line items, PO has %d",
				len(invLines), len(poLines)),
			Details: map[string]any{
				"invoice_line_count": len(invLines),
				"po_line_count":      len(poLines),
			},
		})
	}

	matched := make(map[int]bool, len(poLines)) // PO line index -> consumed

	var pairings []LinePairing
	for i := range invLines {
		inv := &invLines[i]

		pairing := findBestCandidate(inv, poLines, matched)
		if pairing == nil {
			lineNo := inv.LineNo
			issues = append(issues, MatchingIssue{
				Category:   LineItemDiscrepancy,
				Severity:   SeverityHigh,
				Message:    fmt.Sprintf("invoice line %d has no matching PO line", inv.LineNo),
				LineNumber: &lineNo,
				Details: map[string]any{
					"invoice_line_no":     inv.LineNo,
					"invoice_sku":         inv.SKU,
					"invoice_description": inv.Description,
				},
			})
			continue
		}

		matched[indexOfPOLine(poLines, pairing.POLine)] = true
		pairings = append(pairings, *pairing)
		issues = append(issues, compareMatchedLines(inv, pairing.POLine)...)
	}

	for i := range poLines {
		if matched[i] {
			continue
		}
		po := &poLines[i]
		issues = append(issues, MatchingIssue{
			Category: LineItemDiscrepancy,
			Severity: SeverityMedium,
			Message:  fmt.Sprintf("PO line %d not found in invoice", po.LineNo),
			Details: map[string]any{
				"po_line_no":     po.LineNo,
				"po_sku":         po.SKU,
				"po_description": po.Description,
			},
		})
	}

	return pairings, issues
}

// findBestCandidate scores one invoice line against every unconsumed PO line.
// An SKU hit is checked across the whole candidate set before any scored rule
// and wins regardless of other candidates' scores.
func findBestCandidate(inv *InvoiceLine, poLines []POLine, matched map[int]bool) *LinePairing {
	invSKU := strings.TrimSpace(inv.SKU)
	if invSKU != "" {
		for i := range poLines {
			if matched[i] {
				continue
			}
			if strings.TrimSpace(poLines[i].SKU) == invSKU {
				return &LinePairing{InvoiceLine: inv, POLine: &poLines[i], Score: 1.0, Method: MatchBySKU}
			}
		}
	}

	invDesc := normalizeDescription(inv.Description)

	var best *LinePairing
	for i := range poLines {
		if matched[i] {
			continue
		}
		po := &poLines[i]
		poDesc := normalizeDescription(po.Description)

		var score float64
		var method MatchMethod
		switch {
		case invDesc != "" && invDesc == poDesc:
			score, method = 0.95, MatchByDescription
		default:
			ratio := SimilarityRatio(invDesc, poDesc)
			if ratio >= fuzzyThreshold {
				score, method = ratio, MatchByFuzzy
				if quantitiesWithin(inv.Quantity, po.Quantity, decimal.NewFromFloat(0.10)) {
					score += matchBonus
				}
				if quantitiesWithin(inv.UnitPrice, po.UnitPrice, decimal.NewFromFloat(0.05)) {
					score += matchBonus
				}
			} else if invDesc != "" && poDesc != "" &&
				(strings.Contains(invDesc, poDesc) || strings.Contains(poDesc, invDesc)) {
				shorter, longer := len(invDesc), len(poDesc)
				if shorter > longer {
					shorter, longer = longer, shorter
				}
				score, method = float64(shorter)/float64(longer), MatchBySubstring
			}
		}

		if score > 0 && (best == nil || score > best.Score) {
			best = &LinePairing{InvoiceLine: inv, POLine: po, Score: score, Method: method}
		}
	}
	return best
}

// compareMatchedLines validates a paired line: quantity, unit price, SKU.
func compareMatchedLines(inv *InvoiceLine, po *POLine) []MatchingIssue {
	var issues []MatchingIssue
	lineNo := inv.LineNo

	qtyDiff := inv.Quantity.Sub(po.Quantity)
	if qtyDiff.Abs().GreaterThan(amountTolerance) {
		if qtyDiff.IsPositive() {
			issues = append(issues, MatchingIssue{
				Category: QuantityOverage,
				Severity: SeverityHigh,
				Message: fmt.Sprintf("line %d: invoice quantity (%s) exceeds PO quantity (%s)",
					inv.LineNo, inv.Quantity.String(), po.Quantity.String()),
				LineNumber: &lineNo,
				Details: map[string]any{
					"invoice_qty": inv.Quantity.String(),
					"po_qty":      po.Quantity.String(),
					"overage":     qtyDiff.String(),
					"field":       "quantity",
				},
			})
		} else {
			issues = append(issues, MatchingIssue{
				Category: LineItemDiscrepancy,
				Severity: SeverityMedium,
				Message: fmt.Sprintf("line %d: invoice quantity (%s) is less than PO quantity (%s)",
					inv.LineNo, inv.Quantity.String(), po.Quantity.String()),
				LineNumber: &lineNo,
				Details: map[string]any{
					"invoice_qty": inv.Quantity.String(),
					"po_qty":      po.Quantity.String(),
					"field":       "quantity",
				},
			})
		}
	}

	priceDiff := inv.UnitPrice.Sub(po.UnitPrice)
	if priceDiff.Abs().GreaterThan(amountTolerance) {
		issues = append(issues, MatchingIssue{
			Category: LineItemDiscrepancy,
			Severity: SeverityHigh,
			Message: fmt.Sprintf("line %d: unit price mismatch (invoice: %s, PO: %s)",
				inv.LineNo, inv.UnitPrice.StringFixed(2), po.UnitPrice.StringFixed(2)),
			LineNumber: &lineNo,
			Details: map[string]any{
				"invoice_unit_price": inv.UnitPrice.String(),
				"po_unit_price":      po.UnitPrice.String(),
				"difference":         priceDiff.String(),
				"field":              "unit_price",
			},
		})
	}

	invSKU := strings.TrimSpace(inv.SKU)
	poSKU := strings.TrimSpace(po.SKU)
	if invSKU != "" && poSKU != "" && invSKU != poSKU {
		issues = append(issues, MatchingIssue{
			Category: LineItemDiscrepancy,
			Severity: SeverityMedium,
			Message: fmt.Sprintf("line %d: SKU mismatch (invoice: %s, PO: %s)",
				inv.LineNo, invSKU, poSKU),
			LineNumber: &lineNo,
			Details: map[string]any{
				"invoice_sku": invSKU,
				"po_sku":      poSKU,
				"field":       "sku",
			},
		})
	}

	return issues
}

// SimilarityRatio is a normalized [0,1] edit-distance similarity between two
// already-normalized strings: 1 - levenshtein/maxRuneLen.
func SimilarityRatio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

// quantitiesWithin reports whether a and b differ by at most frac of the
// larger magnitude. Two zeros are within any band.
func quantitiesWithin(a, b, frac decimal.Decimal) bool {
	diff := a.Sub(b).Abs()
	if diff.IsZero() {
		return true
	}
	base := decimal.Max(a.Abs(), b.Abs())
	if base.IsZero() {
		return false
	}
	return diff.LessThanOrEqual(base.Mul(frac))
}

func normalizeDescription(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func indexOfPOLine(lines []POLine, target *POLine) int {
	for i := range lines {
		if &lines[i] == target {
			return i
		}
	}
	return -1
}
