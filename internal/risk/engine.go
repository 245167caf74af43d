// Package risk scores a pipeline run's findings into an explainable,
// deterministic 0..100 risk score. The engine is pure: it never calls
// a backend, and malformed or missing inputs contribute zero instead
// of failing.
package risk

import (
	"log/slog"

	"github.com/glassboxhq/glassbox/internal/entity"
)

// Severity thresholds shared by the overall score and every section
// sub-score.
const (
	thresholdCritical = 75
	thresholdHigh     = 55
	thresholdMedium   = 30
)

// Mitigation credit per accepted remediation item, and the ceiling on
// total credit. A triggered critical signal keeps a 10-point floor so
// mitigation cannot erase it entirely.
const (
	creditCritical = 12
	creditHigh     = 8
	creditMedium   = 5
	creditLow      = 3

	mitigationCreditCap = 40
	criticalFloor       = 10
)

// Per-signal point caps.
const (
	capValidationErrors   = 30
	capValidationWarnings = 15
	capComparison         = 25
	capSectionFindings    = 15
)

// Deviation is one difference against an external reference document.
type Deviation struct {
	Field       string          `json:"field"`
	Severity    entity.Severity `json:"severity"`
	Description string          `json:"description,omitempty"`
}

// Mitigation is a remediation item the reviewer accepted.
type Mitigation struct {
	Code     string          `json:"code"`
	Severity entity.Severity `json:"severity"`
	Note     string          `json:"note,omitempty"`
}

// Input is everything the engine may consider. Any field may be nil
// or empty.
type Input struct {
	RawText             string
	Doc                 *entity.StructuredDocument
	Validation          *entity.ValidationResult
	Comparison          []Deviation
	Sections            []entity.SectionAnalysis
	AcceptedMitigations []Mitigation
}

type Engine struct {
	log *slog.Logger
}

func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{log: logger}
}

// Score aggregates all signals additively. Invariants:
// 0 <= MitigatedScore <= RawScore <= 100.
func (e *Engine) Score(in Input) *entity.RiskScore {
	var factors []entity.RiskFactor

	factors = append(factors, validationFactors(in.Validation)...)
	factors = append(factors, comparisonFactor(in.Comparison)...)
	factors = append(factors, sectionFactor(in.Sections)...)
	factors = append(factors, heuristicFactors(in.RawText, in.Doc)...)

	raw := 0
	for _, f := range factors {
		raw += f.Points
	}
	if raw > 100 {
		raw = 100
	}

	mitigated := raw - mitigationCredit(in.AcceptedMitigations)
	if mitigated < 0 {
		mitigated = 0
	}
	if hasCritical(factors) {
		floor := criticalFloor
		if raw < floor {
			floor = raw
		}
		if mitigated < floor {
			mitigated = floor
		}
	}

	score := &entity.RiskScore{
		RawScore:       raw,
		MitigatedScore: mitigated,
		Level:          levelFor(mitigated),
		Factors:        factors,
		SectionScores:  sectionScores(in.Sections),
	}
	e.log.Info("risk.score.done",
		"raw", score.RawScore,
		"mitigated", score.MitigatedScore,
		"level", score.Level,
		"factors", len(score.Factors))
	return score
}

func levelFor(score int) entity.Severity {
	switch {
	case score >= thresholdCritical:
		return entity.SeverityCritical
	case score >= thresholdHigh:
		return entity.SeverityHigh
	case score >= thresholdMedium:
		return entity.SeverityMedium
	default:
		return entity.SeverityLow
	}
}

func hasCritical(factors []entity.RiskFactor) bool {
	for _, f := range factors {
		if f.Severity == entity.SeverityCritical {
			return true
		}
	}
	return false
}

func mitigationCredit(ms []Mitigation) int {
	credit := 0
	for _, m := range ms {
		switch m.Severity {
		case entity.SeverityCritical:
			credit += creditCritical
		case entity.SeverityHigh:
			credit += creditHigh
		case entity.SeverityMedium:
			credit += creditMedium
		default:
			credit += creditLow
		}
	}
	if credit > mitigationCreditCap {
		credit = mitigationCreditCap
	}
	return credit
}

func validationFactors(v *entity.ValidationResult) []entity.RiskFactor {
	if v == nil {
		return nil
	}
	var out []entity.RiskFactor
	if n := len(v.Errors); n > 0 {
		out = append(out, entity.RiskFactor{
			Code:           "validation_errors",
			Title:          "Hard validation errors",
			Severity:       entity.SeverityHigh,
			Points:         capPoints(n*10, capValidationErrors),
			Description:    describeIssues(v.Errors),
			Recommendation: "Resolve every structural error before signing.",
			Source:         "validation",
		})
	}
	if n := len(v.Warnings); n > 0 {
		out = append(out, entity.RiskFactor{
			Code:           "validation_warnings",
			Title:          "Validation warnings",
			Severity:       entity.SeverityMedium,
			Points:         capPoints(n*3, capValidationWarnings),
			Description:    describeIssues(v.Warnings),
			Recommendation: "Review each warning with the counterparty.",
			Source:         "validation",
		})
	}
	return out
}

func comparisonFactor(devs []Deviation) []entity.RiskFactor {
	if len(devs) == 0 {
		return nil
	}
	points := 0
	worst := entity.SeverityLow
	for _, d := range devs {
		switch d.Severity {
		case entity.SeverityCritical:
			points += 15
			worst = entity.SeverityCritical
		case entity.SeverityHigh:
			points += 10
			if worst != entity.SeverityCritical {
				worst = entity.SeverityHigh
			}
		case entity.SeverityMedium:
			points += 6
			if worst == entity.SeverityLow {
				worst = entity.SeverityMedium
			}
		default:
			points += 3
		}
	}
	return []entity.RiskFactor{{
		Code:           "reference_deviations",
		Title:          "Deviations from the reference document",
		Severity:       worst,
		Points:         capPoints(points, capComparison),
		Recommendation: "Compare deviating clauses against the approved template.",
		Source:         "comparison",
	}}
}

func sectionFactor(sections []entity.SectionAnalysis) []entity.RiskFactor {
	if len(sections) == 0 {
		return nil
	}
	points := 0
	for _, s := range sections {
		points += len(s.Warnings) * 2
		for _, r := range s.Recommendations {
			switch r.Priority {
			case entity.SeverityCritical:
				points += 5
			case entity.SeverityHigh:
				points += 3
			default:
				points++
			}
		}
	}
	if points == 0 {
		return nil
	}
	return []entity.RiskFactor{{
		Code:           "section_findings",
		Title:          "Section review findings",
		Severity:       entity.SeverityMedium,
		Points:         capPoints(points, capSectionFindings),
		Recommendation: "Work through the per-section recommendations.",
		Source:         "heuristic",
	}}
}

// sectionScores derives a capped 0..100 sub-score per reviewed
// section using the same threshold buckets as the overall score.
func sectionScores(sections []entity.SectionAnalysis) []entity.SectionRisk {
	if len(sections) == 0 {
		return nil
	}
	out := make([]entity.SectionRisk, 0, len(sections))
	for _, s := range sections {
		score := len(s.Warnings) * 12
		for _, r := range s.Recommendations {
			switch r.Priority {
			case entity.SeverityCritical:
				score += 30
			case entity.SeverityHigh:
				score += 20
			case entity.SeverityMedium:
				score += 10
			default:
				score += 4
			}
		}
		if score > 100 {
			score = 100
		}
		out = append(out, entity.SectionRisk{
			Section: s.Section,
			Score:   score,
			Level:   levelFor(score),
		})
	}
	return out
}

func capPoints(points, limit int) int {
	if points > limit {
		return limit
	}
	return points
}

func describeIssues(issues []entity.ValidationIssue) string {
	if len(issues) == 0 {
		return ""
	}
	s := issues[0].Message
	if len(issues) > 1 {
		s += " (and more)"
	}
	return s
}
