package constants

// StageStatus is the canonical status for one recorded pipeline stage.
type StageStatus string

const (
	StageSuccess StageStatus = "SUCCESS"
	StageFailed  StageStatus = "FAILED"
	StageSkipped StageStatus = "SKIPPED"
)

// RunStatus is the lifecycle status of a whole pipeline run.
type RunStatus string

const (
	RunCreated       RunStatus = "CREATED"
	RunProcessing    RunStatus = "PROCESSING"
	RunCompleted     RunStatus = "COMPLETED"      // terminal
	RunPendingReview RunStatus = "PENDING_REVIEW" // terminal
	RunFailed        RunStatus = "FAILED"         // terminal
)

// Terminal reports whether a run status is final.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunPendingReview || s == RunFailed
}

// Stage names, in pipeline order. Stable values: these end up in the
// audit trail and in exported workbooks.
const (
	StageTextExtraction       = "text_extraction"
	StageEntityExtraction     = "entity_extraction"
	StageGenerativeExtraction = "generative_extraction"
	StageSimilarityFilter     = "similarity_filter"
	StageValidation           = "validation"
	StageRiskScoring          = "risk_scoring"
)
