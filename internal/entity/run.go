package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/glassboxhq/glassbox/constants"
)

// PipelineStage is one discrete, independently-failable step of a run.
// Stages are append-only: once appended to a run they are never
// mutated. This sequence is the audit trail.
type PipelineStage struct {
	Name          string                `json:"name"`
	Status        constants.StageStatus `json:"status"`
	StartedAt     time.Time             `json:"started_at"`
	DurationMs    int64                 `json:"duration_ms"`
	ResultPayload json.RawMessage       `json:"result_payload,omitempty"`
	Error         string                `json:"error,omitempty"`
}

// PipelineRun aggregates everything one document submission produced.
// The orchestrator mutates it by appending stages; once the status is
// terminal the run is immutable.
type PipelineRun struct {
	ID                  uuid.UUID           `json:"id"`
	Status              constants.RunStatus `json:"status"`
	Format              constants.FileFormat `json:"format"`
	RawText             string              `json:"raw_text,omitempty"`
	OriginalFileBytes   []byte              `json:"-"`
	NormalizedFileBytes []byte              `json:"-"`
	Stages              []PipelineStage     `json:"stages"`
	Atoms               []ExtractedAtom     `json:"atoms,omitempty"`
	Document            *StructuredDocument `json:"document,omitempty"`
	Validation          *ValidationResult   `json:"validation,omitempty"`
	Risk                *RiskScore          `json:"risk,omitempty"`
	SimilarDocs         []SimilarDocument   `json:"similar_docs,omitempty"`
	TotalCostUSD        float64             `json:"total_cost_usd"`
	ModelUsed           string              `json:"model_used,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	FinishedAt          time.Time           `json:"finished_at,omitempty"`
}

// SimilarDocument is an advisory match from the similarity store.
// Never authoritative: it is context for the reviewer, not input to
// validation or scoring.
type SimilarDocument struct {
	DocumentID string  `json:"document_id"`
	Summary    string  `json:"summary"`
	Score      float64 `json:"score"`
}

// ValidationResult is the outcome of the schema validator. Warnings
// never flip IsValid.
type ValidationResult struct {
	IsValid  bool              `json:"is_valid"`
	Errors   []ValidationIssue `json:"errors,omitempty"`
	Warnings []ValidationIssue `json:"warnings,omitempty"`
}

type ValidationIssue struct {
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
