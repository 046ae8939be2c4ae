package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// amountTolerance is the absolute rounding allowance for currency and
// quantity comparisons (one cent / one hundredth of a unit).
var amountTolerance = decimal.NewFromFloat(0.01)

// relativeHighPct: a total variance above this percentage escalates
// total_mismatch from medium to high.
var relativeHighPct = decimal.NewFromInt(5)

// DuplicateRef identifies a previously processed invoice with the same
// invoice number and vendor. The lookup is I/O and therefore happens in
// MatchingService; the validator itself stays a pure function.
type DuplicateRef struct {
	InvoiceID int
}

// ValidateHeader runs the ordered header decision tree (steps 1-7) between
// an invoice and the PO its reference resolved to (po may be nil).
//
// Steps 1 and 2 short-circuit: without a resolvable PO nothing further can be
// checked. Later steps accumulate. Callers must skip line-item and
// calculation validation when any returned issue is critical.
func ValidateHeader(inv *Invoice, po *PurchaseOrder, dup *DuplicateRef) []MatchingIssue {
	var issues []MatchingIssue

	// 1. PO number present (whitespace-only counts as absent).
	poNumber := ""
	if inv.PONumber != nil {
		poNumber = strings.TrimSpace(*inv.PONumber)
	}
	if poNumber == "" {
		return append(issues, MatchingIssue{
			Category: MissingReference,
			Severity: SeverityCritical,
			Message:  "invoice has no PO number",
			Details: map[string]any{
				"invoice_id":     inv.ID,
				"invoice_number": inv.InvoiceNumber,
			},
		})
	}

	// 2. PO number resolves to a stored PO.
	if po == nil {
		return append(issues, MatchingIssue{
			Category: MissingReference,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("PO %s not found", poNumber),
			Details: map[string]any{
				"po_number":  poNumber,
				"invoice_id": inv.ID,
			},
		})
	}

	// 3. Duplicate invoice number for the same vendor. Does not stop the tree.
	if dup != nil {
		issues = append(issues, MatchingIssue{
			Category: DuplicateInvoice,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("invoice %s already processed for vendor", inv.InvoiceNumber),
			Details: map[string]any{
				"invoice_number":      inv.InvoiceNumber,
				"existing_invoice_id": dup.InvoiceID,
				"vendor_id":           intOrNil(inv.VendorID),
			},
		})
	}

	// 4. Vendor identity. Resolution happened upstream; this is an exact check.
	if inv.VendorID == nil || *inv.VendorID != po.VendorID {
		issues = append(issues, MatchingIssue{
			Category: VendorMismatch,
			Severity: SeverityCritical,
			Message:  "invoice vendor does not match PO vendor",
			Details: map[string]any{
				"invoice_vendor_id": intOrNil(inv.VendorID),
				"po_vendor_id":      po.VendorID,
			},
		})
	}

	// 5. Declared totals within one cent.
	diff := inv.TotalAmount.Sub(po.TotalAmount)
	if diff.Abs().GreaterThan(amountTolerance) {
		var pct decimal.Decimal
		if po.TotalAmount.IsPositive() {
			pct = diff.Div(po.TotalAmount).Mul(decimal.NewFromInt(100))
		}
		severity := SeverityMedium
		if pct.Abs().GreaterThan(relativeHighPct) {
			severity = SeverityHigh
		}
		issues = append(issues, MatchingIssue{
			Category: TotalMismatch,
			Severity: severity,
			Message: fmt.Sprintf("invoice total (%s) does not match PO total (%s)",
				inv.TotalAmount.StringFixed(2), po.TotalAmount.StringFixed(2)),
			Details: map[string]any{
				"invoice_total":      inv.TotalAmount.String(),
				"po_total":           po.TotalAmount.String(),
				"difference":         diff.String(),
				"difference_percent": pct.String(),
			},
		})
	}

	// 6. Currency codes, case-insensitive, defaulting to USD. A divergence
	// makes the totals incomparable, so it is filed as a total_mismatch.
	invCurrency := currencyOrDefault(inv.Currency)
	poCurrency := currencyOrDefault(po.Currency)
	if invCurrency != poCurrency {
		issues = append(issues, MatchingIssue{
			Category: TotalMismatch,
			Severity: SeverityHigh,
			Message: fmt.Sprintf("invoice currency (%s) does not match PO currency (%s)",
				invCurrency, poCurrency),
			Details: map[string]any{
				"invoice_currency": invCurrency,
				"po_currency":      poCurrency,
			},
		})
	}

	// 7. An invoice dated before its PO was ordered is suspicious.
	if inv.InvoiceDate != nil && po.OrderDate != nil && inv.InvoiceDate.Before(*po.OrderDate) {
		issues = append(issues, MatchingIssue{
			Category: DateAnomaly,
			Severity: SeverityMedium,
			Message: fmt.Sprintf("invoice date (%s) is before PO date (%s)",
				inv.InvoiceDate.Format("2006-01-02"), po.OrderDate.Format("2006-01-02")),
			Details: map[string]any{
				"invoice_date": inv.InvoiceDate.Format("2006-01-02"),
				"po_date":      po.OrderDate.Format("2006-01-02"),
			},
		})
	}

	return issues
}

// HasCritical reports whether any issue carries critical severity.
func HasCritical(issues []MatchingIssue) bool {
	for _, it := range issues {
		if it.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

func currencyOrDefault(c string) string {
	c = strings.ToUpper(strings.TrimSpace(c))
	if c == "" {
		return "USD"
	}
	return c
}

func intOrNil(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
