// Package validate checks a StructuredDocument in two passes: a
// structural pass producing hard errors, then a business-rule pass
// producing warnings. Warnings never flip IsValid.
package validate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/glassboxhq/glassbox/internal/entities"
	"github.com/glassboxhq/glassbox/internal/entity"
	"github.com/glassboxhq/glassbox/internal/genextract"
)

// paymentSumTolerance absorbs rounding in the model's arithmetic when
// comparing the payment schedule against the total.
const paymentSumTolerance = 0.01

// longTermMonths is the business threshold for an unusually long
// contract term.
const longTermMonths = 60

type Validator struct {
	schema *jsonschema.Schema
	log    *slog.Logger
}

func NewValidator(logger *slog.Logger) (*Validator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	raw, err := json.Marshal(genextract.BuildContractJSONSchema())
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("contract.schema.json", bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	s, err := c.Compile("contract.schema.json")
	if err != nil {
		return nil, err
	}
	return &Validator{schema: s, log: logger}, nil
}

// Validate runs structural checks first, then business heuristics.
// The returned result is self-contained; the document is not mutated.
func (v *Validator) Validate(doc *entity.StructuredDocument) *entity.ValidationResult {
	res := &entity.ValidationResult{IsValid: true}
	if doc == nil {
		res.IsValid = false
		res.Errors = append(res.Errors, entity.ValidationIssue{
			Code:    "missing_document",
			Message: "no structured document to validate",
		})
		return res
	}

	res.Errors = append(res.Errors, v.structural(doc)...)
	res.Errors = append(res.Errors, crossField(doc)...)
	res.IsValid = len(res.Errors) == 0

	res.Warnings = businessWarnings(doc)

	v.log.Info("validate.done",
		"is_valid", res.IsValid,
		"errors", len(res.Errors),
		"warnings", len(res.Warnings))
	return res
}

// structural re-checks the document against the contract schema. The
// generative stage already validated its raw output, but the schema is
// cheap and this pass also covers documents arriving from other
// sources.
func (v *Validator) structural(doc *entity.StructuredDocument) []entity.ValidationIssue {
	raw, err := json.Marshal(doc)
	if err != nil {
		return []entity.ValidationIssue{{Code: "marshal_failed", Message: err.Error()}}
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return []entity.ValidationIssue{{Code: "marshal_failed", Message: err.Error()}}
	}
	err = v.schema.Validate(decoded)
	if err == nil {
		return nil
	}
	if ve, ok := err.(*jsonschema.ValidationError); ok {
		return flattenSchemaError(ve)
	}
	return []entity.ValidationIssue{{Code: "schema_violation", Message: err.Error()}}
}

// flattenSchemaError keeps the leaf causes, which carry the concrete
// field paths.
func flattenSchemaError(ve *jsonschema.ValidationError) []entity.ValidationIssue {
	if len(ve.Causes) == 0 {
		return []entity.ValidationIssue{{
			Field:   strings.TrimPrefix(ve.InstanceLocation, "/"),
			Code:    "schema_violation",
			Message: ve.Message,
		}}
	}
	var out []entity.ValidationIssue
	for _, c := range ve.Causes {
		out = append(out, flattenSchemaError(c)...)
	}
	return out
}

// crossField holds the consistency rules the schema cannot express.
func crossField(doc *entity.StructuredDocument) []entity.ValidationIssue {
	var issues []entity.ValidationIssue

	if len(doc.PaymentSchedule) > 0 && doc.Financials.TotalAmount > 0 {
		var sum float64
		for _, p := range doc.PaymentSchedule {
			sum += p.Amount
		}
		if diff := sum - doc.Financials.TotalAmount; diff > paymentSumTolerance || diff < -paymentSumTolerance {
			issues = append(issues, entity.ValidationIssue{
				Field: "payment_schedule",
				Code:  "payment_sum_mismatch",
				Message: fmt.Sprintf("scheduled payments sum to %.2f, total amount is %.2f",
					sum, doc.Financials.TotalAmount),
			})
		}
	}

	start, okStart := parseDate(doc.Term.StartDate)
	end, okEnd := parseDate(doc.Term.EndDate)
	if okStart && okEnd && end.Before(start) {
		issues = append(issues, entity.ValidationIssue{
			Field:   "term.end_date",
			Code:    "term_inverted",
			Message: fmt.Sprintf("end date %s precedes start date %s", doc.Term.EndDate, doc.Term.StartDate),
		})
	}

	for i, p := range doc.Parties {
		if p.TaxID == "" {
			continue
		}
		valid := false
		switch len(p.TaxID) {
		case 10:
			valid = entities.ValidTaxID10(p.TaxID)
		case 12:
			valid = entities.ValidTaxID12(p.TaxID)
		}
		if !valid {
			issues = append(issues, entity.ValidationIssue{
				Field:   fmt.Sprintf("parties/%d/tax_id", i),
				Code:    "tax_id_checksum",
				Message: fmt.Sprintf("tax identifier %q fails the checksum", p.TaxID),
			})
		}
	}

	return issues
}

// businessWarnings are advisory only.
func businessWarnings(doc *entity.StructuredDocument) []entity.ValidationIssue {
	var warns []entity.ValidationIssue

	for i, p := range doc.Parties {
		if p.TaxID == "" {
			warns = append(warns, entity.ValidationIssue{
				Field:   fmt.Sprintf("parties/%d/tax_id", i),
				Code:    "missing_tax_id",
				Message: fmt.Sprintf("party %q has no tax identifier", p.Name),
			})
		}
	}

	if months := termMonths(doc.Term); months > longTermMonths {
		warns = append(warns, entity.ValidationIssue{
			Field:   "term",
			Code:    "unusually_long_term",
			Message: fmt.Sprintf("contract term is %d months", months),
		})
	}

	if len(doc.Penalties) == 0 && doc.Financials.PenaltyPercentPerDay == 0 {
		warns = append(warns, entity.ValidationIssue{
			Field:   "penalties",
			Code:    "no_penalties",
			Message: "no contractual penalties found",
		})
	}

	if len(doc.Termination) == 0 {
		warns = append(warns, entity.ValidationIssue{
			Field:   "termination",
			Code:    "no_termination_clause",
			Message: "no termination clause found",
		})
	}

	return warns
}

func termMonths(t entity.Term) int {
	if t.DurationMonths > 0 {
		return t.DurationMonths
	}
	start, okStart := parseDate(t.StartDate)
	end, okEnd := parseDate(t.EndDate)
	if !okStart || !okEnd || end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours() / 24 / 30)
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
