package core_test

import (
	"encoding/json"
	"testing"

	"ap-reconciler/internal/core"
)

func TestIssueWireShape(t *testing.T) {
	lineNo := 3
	issue := core.MatchingIssue{
		Category:   core.QuantityOverage,
		Severity:   core.SeverityHigh,
		Message:    "line 3: invoice quantity (12) exceeds PO quantity (10)",
		Details:    map[string]any{"invoice_qty": "12", "po_qty": "10"},
		LineNumber: &lineNo,
	}

	raw, err := json.Marshal(issue)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"category", "severity", "message", "details", "line_number"} {
		if _, ok := m[key]; !ok {
			t.Errorf("wire shape missing %q", key)
		}
	}
	if m["line_number"] != float64(3) {
		t.Errorf("line_number = %v, want 3", m["line_number"])
	}
}

func TestIssueWireShape_LineNumberOmittedWhenAbsent(t *testing.T) {
	raw, err := json.Marshal(core.MatchingIssue{Category: core.TotalMismatch, Severity: core.SeverityMedium})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	_ = json.Unmarshal(raw, &m)
	if _, ok := m["line_number"]; ok {
		t.Error("line_number should be omitted for header-level issues")
	}
}

func TestEncodeDecodeIssues_RoundTrip(t *testing.T) {
	lineNo := 1
	in := []core.MatchingIssue{
		{
			Category:   core.LineItemDiscrepancy,
			Severity:   core.SeverityMedium,
			Message:    "line 1: SKU mismatch",
			Details:    map[string]any{"invoice_sku": "A", "po_sku": "B", "field": "sku"},
			LineNumber: &lineNo,
		},
		{
			Category: core.MissingReference,
			Severity: core.SeverityCritical,
			Message:  "invoice has no PO number",
		},
	}

	raw, err := core.EncodeIssues(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := core.DecodeIssues(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 issues, got %d", len(out))
	}
	if out[0].Category != in[0].Category || out[0].Severity != in[0].Severity {
		t.Errorf("first issue changed: %+v", out[0])
	}
	if out[0].LineNumber == nil || *out[0].LineNumber != 1 {
		t.Errorf("line number lost: %v", out[0].LineNumber)
	}
	if out[0].Details["field"] != "sku" {
		t.Errorf("details lost: %v", out[0].Details)
	}
}

func TestDecodeIssues_LegacySeverityAliases(t *testing.T) {
	raw := []byte(`[
		{"category":"vendor_mismatch","severity":"exception","message":"x"},
		{"category":"date_anomaly","severity":"needs_review","message":"y"},
		{"category":"tax_error","severity":"garbage","message":"z"}
	]`)
	out, err := core.DecodeIssues(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out[0].Severity != core.SeverityCritical {
		t.Errorf(`"exception" -> %s, want critical`, out[0].Severity)
	}
	if out[1].Severity != core.SeverityMedium {
		t.Errorf(`"needs_review" -> %s, want medium`, out[1].Severity)
	}
	if out[2].Severity != core.SeverityMedium {
		t.Errorf("unknown severity -> %s, want medium default", out[2].Severity)
	}
}

func TestDecodeIssues_Empty(t *testing.T) {
	for _, raw := range [][]byte{nil, []byte("[]")} {
		out, err := core.DecodeIssues(raw)
		if err != nil {
			t.Fatalf("decode %q: %v", raw, err)
		}
		if len(out) != 0 {
			t.Errorf("decode %q: expected empty, got %d", raw, len(out))
		}
	}
}

func TestFallbackRationale(t *testing.T) {
	if got := core.FallbackRationale(nil); got != "All validation checks passed." {
		t.Errorf("clean fallback = %q", got)
	}
	issues := []core.MatchingIssue{issueWith(core.SeverityHigh), issueWith(core.SeverityLow)}
	if got := core.FallbackRationale(issues); got != "Automated validation found 2 issue(s). Manual review recommended." {
		t.Errorf("issue fallback = %q", got)
	}
}
