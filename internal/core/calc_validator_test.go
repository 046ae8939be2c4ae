package core_test

import (
	"testing"

	"ap-reconciler/internal/core"
)

func TestValidateCalculations_Clean(t *testing.T) {
	inv := testInvoice()
	inv.Lines = []core.InvoiceLine{
		invLine(1, "A", "widget", "10", "60.00"),
		invLine(2, "B", "gadget", "4", "100.00"),
	}
	po := testPO()
	po.Lines = []core.POLine{
		poLine(1, "A", "widget", "10", "60.00"),
		poLine(2, "B", "gadget", "4", "100.00"),
	}

	if issues := core.ValidateCalculations(inv, po); len(issues) != 0 {
		t.Errorf("expected no issues, got %v", categories(issues))
	}
}

func TestValidateCalculations_InvoiceSumOff(t *testing.T) {
	inv := testInvoice() // declared total 1000.00
	inv.Lines = []core.InvoiceLine{
		invLine(1, "A", "widget", "10", "60.00"), // sums to 600.00
	}
	po := testPO()
	po.Lines = []core.POLine{
		poLine(1, "A", "widget", "10", "100.00"), // sums to 1000.00
	}

	issues := core.ValidateCalculations(inv, po)
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue, got %v", categories(issues))
	}
	it := issues[0]
	if it.Category != core.CalculationError || it.Severity != core.SeverityHigh {
		t.Errorf("got %s/%s, want high calculation_error", it.Category, it.Severity)
	}
	if it.Details["calculated_total"] != "600" {
		t.Errorf("calculated_total = %v, want 600", it.Details["calculated_total"])
	}
	if it.Details["difference"] != "-400" {
		t.Errorf("difference = %v, want -400", it.Details["difference"])
	}
}

func TestValidateCalculations_BothDocumentsChecked(t *testing.T) {
	inv := testInvoice()
	inv.Lines = []core.InvoiceLine{invLine(1, "A", "widget", "1", "1.00")}
	po := testPO()
	po.Lines = []core.POLine{poLine(1, "A", "widget", "1", "1.00")}

	issues := core.ValidateCalculations(inv, po)
	if len(issues) != 2 {
		t.Fatalf("expected one issue per document, got %v", categories(issues))
	}
}

func TestValidateCalculations_WithinTolerance(t *testing.T) {
	inv := testInvoice()
	inv.TotalAmount = dec("600.01")
	inv.Lines = []core.InvoiceLine{invLine(1, "A", "widget", "10", "60.00")}
	po := testPO()
	po.TotalAmount = dec("600.00")
	po.Lines = []core.POLine{poLine(1, "A", "widget", "10", "60.00")}

	if issues := core.ValidateCalculations(inv, po); len(issues) != 0 {
		t.Errorf("one cent off should pass, got %v", categories(issues))
	}
}
