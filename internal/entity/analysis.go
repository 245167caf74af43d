package entity

// SectionAnalysis is one section's generative deep-review result.
// Advisory: it feeds per-section risk sub-scores and the audit trail,
// never the structured document itself.
type SectionAnalysis struct {
	Section         string                  `json:"section"`
	Summary         string                  `json:"summary,omitempty"`
	Warnings        []string                `json:"warnings,omitempty"`
	Recommendations []SectionRecommendation `json:"recommendations,omitempty"`
}

type SectionRecommendation struct {
	Priority Severity `json:"priority"`
	Text     string   `json:"text"`
}
