package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FieldComparison is one field-level diff between an invoice line and its
// positional PO counterpart. Similarity is set only for inexact description
// matches.
type FieldComparison struct {
	FieldName    string   `json:"field_name"`
	InvoiceValue string   `json:"invoice_value"`
	POValue      *string  `json:"po_value,omitempty"`
	Match        bool     `json:"match"`
	Similarity   *float64 `json:"similarity,omitempty"`
	Explanation  string   `json:"diff_explanation,omitempty"`
	Severity     string   `json:"severity,omitempty"`
}

// LineComparison pairs one invoice line with the PO line at the same line
// number. OverallMatch is perfect, partial, mismatch, or missing.
type LineComparison struct {
	LineNumber   int               `json:"line_number"`
	InvoiceLine  InvoiceLine       `json:"invoice_line"`
	POLine       *POLine           `json:"po_line,omitempty"`
	Fields       []FieldComparison `json:"field_comparisons"`
	OverallMatch string            `json:"overall_match"`
	Issues       []ValidationIssue `json:"issues,omitempty"`
}

// CompareLineItems builds the side-by-side review view for a pair. Lines are
// aligned by line number (the reviewer's mental model), not by the matcher's
// fuzzy pairing. Pair issues carrying a line number are attached to that line.
func CompareLineItems(invoiceLines []InvoiceLine, poLines []POLine, issues []ValidationIssue) []LineComparison {
	poByLineNo := make(map[int]*POLine, len(poLines))
	for i := range poLines {
		poByLineNo[poLines[i].LineNo] = &poLines[i]
	}

	var comparisons []LineComparison
	for _, invLine := range invoiceLines {
		poLine := poByLineNo[invLine.LineNo]
		fields := compareFields(invLine, poLine)

		comparisons = append(comparisons, LineComparison{
			LineNumber:   invLine.LineNo,
			InvoiceLine:  invLine,
			POLine:       poLine,
			Fields:       fields,
			OverallMatch: overallMatch(poLine, fields),
			Issues:       issuesForLine(issues, invLine.LineNo),
		})
	}
	return comparisons
}

func compareFields(invLine InvoiceLine, poLine *POLine) []FieldComparison {
	var fields []FieldComparison

	descMatch := false
	var descSimilarity *float64
	var poDesc *string
	if poLine != nil {
		poDesc = &poLine.Description
		descMatch = strings.EqualFold(strings.TrimSpace(invLine.Description), strings.TrimSpace(poLine.Description))
		if !descMatch {
			sim := SimilarityRatio(normalizeDescription(invLine.Description), normalizeDescription(poLine.Description))
			descSimilarity = &sim
		}
	}
	fields = append(fields, FieldComparison{
		FieldName:    "description",
		InvoiceValue: invLine.Description,
		POValue:      poDesc,
		Match:        descMatch,
		Similarity:   descSimilarity,
		Explanation:  unless(descMatch, "Description mismatch"),
		Severity:     unless(descMatch || poLine == nil, "warning"),
	})

	// SKU comparison only applies when both sides carry one.
	if invLine.SKU != "" && poLine != nil && poLine.SKU != "" {
		skuMatch := strings.EqualFold(strings.TrimSpace(invLine.SKU), strings.TrimSpace(poLine.SKU))
		fields = append(fields, FieldComparison{
			FieldName:    "sku",
			InvoiceValue: invLine.SKU,
			POValue:      &poLine.SKU,
			Match:        skuMatch,
			Explanation:  unless(skuMatch, "SKU mismatch"),
			Severity:     unless(skuMatch, "warning"),
		})
	}

	qtyMatch := false
	var poQty *string
	if poLine != nil {
		qtyMatch = invLine.Quantity.Equal(poLine.Quantity)
		s := poLine.Quantity.String()
		poQty = &s
	}
	fields = append(fields, FieldComparison{
		FieldName:    "quantity",
		InvoiceValue: invLine.Quantity.String(),
		POValue:      poQty,
		Match:        qtyMatch,
		Explanation:  unless(qtyMatch, fmt.Sprintf("Quantity mismatch: %s vs %s", invLine.Quantity, orNA(poQty))),
		Severity:     unless(qtyMatch || poLine == nil, "high"),
	})

	priceMatch := false
	var poPrice *string
	if poLine != nil {
		priceMatch = invLine.UnitPrice.Sub(poLine.UnitPrice).Abs().LessThan(amountTolerance)
		s := poLine.UnitPrice.String()
		poPrice = &s
	}
	fields = append(fields, FieldComparison{
		FieldName:    "unit_price",
		InvoiceValue: invLine.UnitPrice.String(),
		POValue:      poPrice,
		Match:        priceMatch,
		Explanation:  unless(priceMatch, fmt.Sprintf("Price mismatch: %s vs %s", invLine.UnitPrice, orNA(poPrice))),
		Severity:     unless(priceMatch || poLine == nil, "high"),
	})

	return fields
}

func overallMatch(poLine *POLine, fields []FieldComparison) string {
	if poLine == nil {
		return "missing"
	}
	allMatch := true
	anyHigh := false
	for _, f := range fields {
		if !f.Match {
			allMatch = false
		}
		if f.Severity == "high" {
			anyHigh = true
		}
	}
	switch {
	case allMatch:
		return "perfect"
	case anyHigh:
		return "mismatch"
	default:
		return "partial"
	}
}

func issuesForLine(issues []ValidationIssue, lineNo int) []ValidationIssue {
	var out []ValidationIssue
	for _, issue := range issues {
		if issue.LineNumber != nil && *issue.LineNumber == lineNo {
			out = append(out, issue)
		}
	}
	return out
}

// LineTotal is the extended amount of one invoice line.
func (l InvoiceLine) LineTotal() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

// LineTotal is the extended amount of one PO line.
func (l POLine) LineTotal() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

func unless(cond bool, msg string) string {
	if cond {
		return ""
	}
	return msg
}

func orNA(s *string) string {
	if s == nil {
		return "N/A"
	}
	return *s
}
