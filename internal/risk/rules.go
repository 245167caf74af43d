package risk

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/glassboxhq/glassbox/internal/entity"
)

// Text-pattern heuristics. Each rule contributes at most its declared
// points; the document value wins over the text scan when both exist.
const (
	prepaymentThresholdPercent = 50.0
	penaltyThresholdPerDay     = 0.5

	pointsHighPrepayment      = 15
	pointsHighPenaltyRate     = 10
	pointsNoForceMajeure      = 8
	pointsUnlimitedLiability  = 20
	pointsForeignJurisdiction = 12
)

var (
	forceMajeurePattern = regexp.MustCompile(`(?i)force[ -]majeure`)

	unlimitedLiabilityPattern = regexp.MustCompile(
		`(?i)unlimited liabilit|liable without limit|with(out)? any limitation of liability|full extent of (its|their) assets`)

	foreignJurisdictionPattern = regexp.MustCompile(
		`(?i)courts? of (england|wales|london|new york|delaware|singapore|hong kong|cyprus)|international (commercial )?arbitration|LCIA|ICC arbitration|UNCITRAL`)

	prepaymentTextPattern = regexp.MustCompile(
		`(?i)(\d{1,3})\s?%\s?(advance|prepayment|pre-payment|upfront)`)
)

func heuristicFactors(text string, doc *entity.StructuredDocument) []entity.RiskFactor {
	var out []entity.RiskFactor

	if pct, ok := prepaymentPercent(text, doc); ok && pct > prepaymentThresholdPercent {
		out = append(out, entity.RiskFactor{
			Code:           "high_prepayment",
			Title:          "Prepayment above threshold",
			Severity:       entity.SeverityHigh,
			Points:         pointsHighPrepayment,
			Description:    fmt.Sprintf("prepayment is %.0f%% of the contract value", pct),
			Recommendation: "Negotiate staged payments or a bank guarantee for the advance.",
			Source:         "heuristic",
		})
	}

	if rate, ok := penaltyRatePerDay(doc); ok && rate > penaltyThresholdPerDay {
		out = append(out, entity.RiskFactor{
			Code:           "high_penalty_rate",
			Title:          "Daily penalty rate above threshold",
			Severity:       entity.SeverityHigh,
			Points:         pointsHighPenaltyRate,
			Description:    fmt.Sprintf("penalty is %.2f%% per day", rate),
			Recommendation: "Cap the total penalty or lower the daily rate.",
			Source:         "heuristic",
		})
	}

	if text != "" && !forceMajeurePattern.MatchString(text) {
		out = append(out, entity.RiskFactor{
			Code:           "no_force_majeure",
			Title:          "No force majeure clause",
			Severity:       entity.SeverityMedium,
			Points:         pointsNoForceMajeure,
			Recommendation: "Add a force majeure clause covering both parties.",
			Source:         "heuristic",
		})
	}

	if loc := unlimitedLiabilityPattern.FindString(text); loc != "" {
		out = append(out, entity.RiskFactor{
			Code:           "unlimited_liability",
			Title:          "Unlimited liability language",
			Severity:       entity.SeverityCritical,
			Points:         pointsUnlimitedLiability,
			Description:    fmt.Sprintf("matched %q", loc),
			Recommendation: "Limit liability to the contract value or a fixed cap.",
			Source:         "heuristic",
		})
	}

	if loc := foreignJurisdictionPattern.FindString(text); loc != "" {
		out = append(out, entity.RiskFactor{
			Code:           "foreign_jurisdiction",
			Title:          "Foreign jurisdiction or arbitration",
			Severity:       entity.SeverityHigh,
			Points:         pointsForeignJurisdiction,
			Description:    fmt.Sprintf("matched %q", loc),
			Recommendation: "Assess enforcement cost and counsel availability in that venue.",
			Source:         "heuristic",
		})
	}

	return out
}

func prepaymentPercent(text string, doc *entity.StructuredDocument) (float64, bool) {
	if doc != nil && doc.Financials.PrepaymentPercent > 0 {
		return doc.Financials.PrepaymentPercent, true
	}
	m := prepaymentTextPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil || pct > 100 {
		return 0, false
	}
	return pct, true
}

func penaltyRatePerDay(doc *entity.StructuredDocument) (float64, bool) {
	if doc == nil {
		return 0, false
	}
	rate := doc.Financials.PenaltyPercentPerDay
	for _, p := range doc.Penalties {
		if p.PercentPerDay > rate {
			rate = p.PercentPerDay
		}
	}
	return rate, rate > 0
}
