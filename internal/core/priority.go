package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// slaOffsets maps a priority to the window within which a queued review item
// should be addressed.
var slaOffsets = map[Priority]time.Duration{
	PriorityCritical: 2 * time.Hour,
	PriorityHigh:     8 * time.Hour,
	PriorityMedium:   24 * time.Hour,
	PriorityLow:      72 * time.Hour,
}

// SLADeadline returns createdAt plus the fixed offset for the priority.
func SLADeadline(p Priority, createdAt time.Time) time.Time {
	offset, ok := slaOffsets[p]
	if !ok {
		offset = slaOffsets[PriorityLow]
	}
	return createdAt.Add(offset)
}

// DerivePriority ranks a needs-review result for the queue. Rules are checked
// in order, first hit wins:
//
//	critical — reference/duplicate/vendor categories, or a critical-tagged issue
//	high     — total_mismatch over 5% variance, quantity/calculation categories,
//	           or a high-tagged issue
//	medium   — line/date/count categories, or a medium-tagged issue
//	low      — everything else
func DerivePriority(issues []MatchingIssue) Priority {
	if len(issues) == 0 {
		return PriorityLow
	}

	for _, it := range issues {
		switch it.Category {
		case MissingReference, DuplicateInvoice, VendorMismatch:
			return PriorityCritical
		}
	}
	for _, it := range issues {
		if it.Severity == SeverityCritical {
			return PriorityCritical
		}
	}

	for _, it := range issues {
		if it.Category == TotalMismatch && totalVarianceExceeds(it, relativeHighPct) {
			return PriorityHigh
		}
	}
	for _, it := range issues {
		switch it.Category {
		case QuantityOverage, CalculationError:
			return PriorityHigh
		}
	}
	for _, it := range issues {
		if it.Severity == SeverityHigh {
			return PriorityHigh
		}
	}

	for _, it := range issues {
		switch it.Category {
		case LineItemDiscrepancy, DateAnomaly, LineCountMismatch:
			return PriorityMedium
		}
	}
	for _, it := range issues {
		if it.Severity == SeverityMedium {
			return PriorityMedium
		}
	}

	return PriorityLow
}

// PrimaryIssue returns the issue with the lowest severity rank; ties go to
// the earliest occurrence. Nil for an empty list.
func PrimaryIssue(issues []MatchingIssue) *MatchingIssue {
	var primary *MatchingIssue
	for i := range issues {
		if primary == nil || issues[i].Severity.Rank() < primary.Severity.Rank() {
			primary = &issues[i]
		}
	}
	return primary
}

// totalVarianceExceeds reads the recorded difference_percent detail of a
// total_mismatch issue and compares its magnitude against pct. The detail is
// stored as a decimal string but tolerates float64 for rows written by the
// old matching path.
func totalVarianceExceeds(it MatchingIssue, pct decimal.Decimal) bool {
	raw, ok := it.Details["difference_percent"]
	if !ok {
		return false
	}
	var v decimal.Decimal
	switch d := raw.(type) {
	case string:
		parsed, err := decimal.NewFromString(d)
		if err != nil {
			return false
		}
		v = parsed
	case float64:
		v = decimal.NewFromFloat(d)
	case int:
		v = decimal.NewFromInt(int64(d))
	case decimal.Decimal:
		v = d
	default:
		return false
	}
	return v.Abs().GreaterThan(pct)
}
