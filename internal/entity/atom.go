package entity

import "github.com/glassboxhq/glassbox/constants"

// ExtractedAtom is a single structured value pulled deterministically
// from normalized text. Atoms are immutable once produced: downstream
// stages consume them but never mutate them.
type ExtractedAtom struct {
	Type            constants.EntityType `json:"type"`
	RawValue        string               `json:"raw_value"`
	NormalizedValue string               `json:"normalized_value"`
	Confidence      float32              `json:"confidence"` // 0..1
	SourceOffset    int                  `json:"source_offset"`
	ContextSnippet  string               `json:"context_snippet,omitempty"`
}
