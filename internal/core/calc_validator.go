package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidateCalculations checks that the sum of quantity x unit price across a
// document's lines reconciles with its declared total, for invoice and PO
// independently. Each violation is a high-severity calculation_error carrying
// both the computed and declared figures.
func ValidateCalculations(inv *Invoice, po *PurchaseOrder) []MatchingIssue {
	var issues []MatchingIssue

	invSum := decimal.Zero
	for _, l := range inv.Lines {
		invSum = invSum.Add(l.LineTotal())
	}
	if invSum.Sub(inv.TotalAmount).Abs().GreaterThan(amountTolerance) {
		issues = append(issues, MatchingIssue{
			Category: CalculationError,
			Severity: SeverityHigh,
			Message: fmt.Sprintf("sum of invoice line totals (%s) does not match invoice total (%s)",
				invSum.StringFixed(2), inv.TotalAmount.StringFixed(2)),
			Details: map[string]any{
				"calculated_total": invSum.String(),
				"invoice_total":    inv.TotalAmount.String(),
				"difference":       invSum.Sub(inv.TotalAmount).String(),
			},
		})
	}

	poSum := decimal.Zero
	for _, l := range po.Lines {
		poSum = poSum.Add(l.LineTotal())
	}
	if poSum.Sub(po.TotalAmount).Abs().GreaterThan(amountTolerance) {
		issues = append(issues, MatchingIssue{
			Category: CalculationError,
			Severity: SeverityHigh,
			Message: fmt.Sprintf("sum of PO line totals (%s) does not match PO total (%s)",
				poSum.StringFixed(2), po.TotalAmount.StringFixed(2)),
			Details: map[string]any{
				"calculated_total": poSum.String(),
				"po_total":         po.TotalAmount.String(),
				"difference":       poSum.Sub(po.TotalAmount).String(),
			},
		})
	}

	return issues
}
