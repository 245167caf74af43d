package entity

// Severity buckets for risk factors and scores.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// RiskFactor is one itemized, explainable contribution to a risk
// score. Produced fresh per scoring run; never mutated.
type RiskFactor struct {
	Code           string   `json:"code"`
	Title          string   `json:"title"`
	Severity       Severity `json:"severity"`
	Points         int      `json:"points"` // 0..100, capped per signal
	Description    string   `json:"description,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
	Source         string   `json:"source,omitempty"` // validation|comparison|heuristic
}

// SectionRisk is a capped 0..100 sub-score for one document section.
type SectionRisk struct {
	Section string   `json:"section"`
	Score   int      `json:"score"`
	Level   Severity `json:"level"`
}

// RiskScore is the deterministic aggregate. Invariant:
// MitigatedScore <= RawScore, both within [0,100].
type RiskScore struct {
	RawScore       int           `json:"raw_score"`
	MitigatedScore int           `json:"mitigated_score"`
	Level          Severity      `json:"level"`
	Factors        []RiskFactor  `json:"factors"`
	SectionScores  []SectionRisk `json:"section_scores,omitempty"`
}
