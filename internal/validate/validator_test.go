package validate

import (
	"testing"

	"github.com/glassboxhq/glassbox/internal/entity"
)

func validDocument() *entity.StructuredDocument {
	return &entity.StructuredDocument{
		Parties: []entity.Party{
			{Role: "supplier", Name: "Acme Supplies LLC", TaxID: "7707083893"},
			{Role: "buyer", Name: "Globex Industrial Ltd.", TaxID: "500100732259"},
		},
		Subject: "supply of industrial equipment",
		Term:    entity.Term{StartDate: "2024-03-15", EndDate: "2024-12-31"},
		Financials: entity.Financials{
			TotalAmount: 1000,
			Currency:    "USD",
		},
		PaymentSchedule: []entity.ScheduledPayment{
			{DueDate: "2024-04-01", Amount: 300},
			{DueDate: "2024-10-01", Amount: 700},
		},
		Penalties:   []entity.Penalty{{Text: "0.1% per day of overdue amount", PercentPerDay: 0.1}},
		Termination: []entity.TerminationClause{{Text: "30 days written notice", NoticeDays: 30}},
	}
}

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator(nil)
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	return v
}

func TestValidateCleanDocument(t *testing.T) {
	v := newTestValidator(t)
	res := v.Validate(validDocument())
	if !res.IsValid {
		t.Fatalf("IsValid = false, errors = %+v", res.Errors)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("errors = %+v", res.Errors)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("warnings = %+v", res.Warnings)
	}
}

func TestValidatePaymentSumMismatch(t *testing.T) {
	v := newTestValidator(t)
	doc := validDocument()
	doc.PaymentSchedule[1].Amount = 500 // sum 800 vs total 1000

	res := v.Validate(doc)
	if res.IsValid {
		t.Fatalf("IsValid = true for mismatched payment schedule")
	}
	if !hasCode(res.Errors, "payment_sum_mismatch") {
		t.Fatalf("errors = %+v, want payment_sum_mismatch", res.Errors)
	}
}

func TestValidatePaymentSumWithinTolerance(t *testing.T) {
	v := newTestValidator(t)
	doc := validDocument()
	doc.PaymentSchedule[1].Amount = 700.005 // off by half a cent

	res := v.Validate(doc)
	if hasCode(res.Errors, "payment_sum_mismatch") {
		t.Fatalf("rounding within tolerance reported as error: %+v", res.Errors)
	}
}

func TestValidateInvertedTerm(t *testing.T) {
	v := newTestValidator(t)
	doc := validDocument()
	doc.Term.StartDate = "2024-12-31"
	doc.Term.EndDate = "2024-03-15"

	res := v.Validate(doc)
	if res.IsValid || !hasCode(res.Errors, "term_inverted") {
		t.Fatalf("errors = %+v, want term_inverted", res.Errors)
	}
}

func TestValidateTaxIDChecksumError(t *testing.T) {
	v := newTestValidator(t)
	doc := validDocument()
	doc.Parties[0].TaxID = "7707083890" // broken check digit

	res := v.Validate(doc)
	if res.IsValid || !hasCode(res.Errors, "tax_id_checksum") {
		t.Fatalf("errors = %+v, want tax_id_checksum", res.Errors)
	}
}

func TestValidateMissingRequiredFields(t *testing.T) {
	v := newTestValidator(t)
	doc := validDocument()
	doc.Financials.Currency = ""

	res := v.Validate(doc)
	if res.IsValid {
		t.Fatalf("IsValid = true with empty currency")
	}
}

func TestValidateNilDocument(t *testing.T) {
	v := newTestValidator(t)
	res := v.Validate(nil)
	if res.IsValid || !hasCode(res.Errors, "missing_document") {
		t.Fatalf("result = %+v", res)
	}
}

func TestWarningsNeverFlipIsValid(t *testing.T) {
	v := newTestValidator(t)
	doc := validDocument()
	doc.Parties[0].TaxID = ""
	doc.Parties[1].TaxID = ""
	doc.Penalties = nil
	doc.Financials.PenaltyPercentPerDay = 0
	doc.Termination = nil
	doc.Term = entity.Term{DurationMonths: 120}

	res := v.Validate(doc)
	if !res.IsValid {
		t.Fatalf("warnings flipped IsValid, errors = %+v", res.Errors)
	}
	for _, code := range []string{"missing_tax_id", "unusually_long_term", "no_penalties", "no_termination_clause"} {
		if !hasCode(res.Warnings, code) {
			t.Fatalf("warnings = %+v, want %s", res.Warnings, code)
		}
	}
}

func hasCode(issues []entity.ValidationIssue, code string) bool {
	for _, i := range issues {
		if i.Code == code {
			return true
		}
	}
	return false
}
