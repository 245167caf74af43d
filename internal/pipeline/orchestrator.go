// Package pipeline drives one document through the full processing
// sequence and records every step in an append-only audit trail. The
// orchestrator owns the run's state machine; stages never see or
// mutate the run directly.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/glassboxhq/glassbox/constants"
	"github.com/glassboxhq/glassbox/internal/common"
	"github.com/glassboxhq/glassbox/internal/entities"
	"github.com/glassboxhq/glassbox/internal/entity"
	"github.com/glassboxhq/glassbox/internal/extract"
	"github.com/glassboxhq/glassbox/internal/genextract"
	"github.com/glassboxhq/glassbox/internal/risk"
	"github.com/glassboxhq/glassbox/internal/similar"
	"github.com/glassboxhq/glassbox/internal/validate"
)

// DocExtractor is the slice of the generative extractor the
// orchestrator needs.
type DocExtractor interface {
	Extract(ctx context.Context, text string, seed map[constants.EntityType][]entity.ExtractedAtom) (*genextract.Output, error)
	AnalyzeSections(ctx context.Context, text string) (*genextract.SectionOutput, error)
}

// Request describes one document submission.
type Request struct {
	FilePath   string
	Format     constants.FileFormat // empty = sniff from extension
	DeepReview bool                 // section-by-section generative review
}

type Orchestrator struct {
	extractor extract.TextExtractor
	gen       DocExtractor
	validator *validate.Validator
	risk      *risk.Engine
	similar   similar.Store // nil disables the similarity stage
	topK      int
	log       *slog.Logger
	now       func() time.Time
}

func NewOrchestrator(
	extractor extract.TextExtractor,
	gen DocExtractor,
	validator *validate.Validator,
	riskEngine *risk.Engine,
	similarStore similar.Store,
	topK int,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if topK <= 0 {
		topK = 5
	}
	return &Orchestrator{
		extractor: extractor,
		gen:       gen,
		validator: validator,
		risk:      riskEngine,
		similar:   similarStore,
		topK:      topK,
		log:       logger,
		now:       time.Now,
	}
}

// Process runs every stage sequentially for one document. The returned
// run is always usable, whatever its terminal status: a failed run
// still carries the audit trail up to the failure.
func (o *Orchestrator) Process(ctx context.Context, req Request) (*entity.PipelineRun, error) {
	run := &entity.PipelineRun{
		ID:        uuid.New(),
		Status:    constants.RunCreated,
		Format:    req.Format,
		CreatedAt: o.now(),
	}
	log := o.log.With("run_id", run.ID)
	log.Info("pipeline.run.start", "path", req.FilePath, "deep_review", req.DeepReview)

	raw, err := os.ReadFile(req.FilePath)
	if err != nil {
		run.Status = constants.RunFailed
		run.FinishedAt = o.now()
		return run, fmt.Errorf("read input: %w", err)
	}
	run.OriginalFileBytes = raw
	if run.Format == "" {
		run.Format = constants.MapExtToFormat(filepath.Ext(req.FilePath))
	}
	if run.Format == "" {
		run.Status = constants.RunFailed
		run.FinishedAt = o.now()
		return run, common.ErrUnsupportedInput
	}
	run.Status = constants.RunProcessing

	// Text extraction is the hard dependency of everything below.
	ok := o.runStage(ctx, run, constants.StageTextExtraction, func(ctx context.Context) (any, error) {
		res, err := o.extractor.Extract(ctx, req.FilePath, run.Format)
		if err != nil {
			return nil, err
		}
		if res.Text == "" {
			return nil, common.ErrNoText
		}
		run.RawText = res.Text
		run.NormalizedFileBytes = res.NormalizedDOCX
		return map[string]any{
			"method":      res.Method,
			"pages":       res.Pages,
			"confidence":  res.Confidence,
			"chars":       len(res.Text),
			"warnings":    res.Warnings,
			"duration_ms": res.Duration.Milliseconds(),
		}, nil
	})
	if aborted(run) {
		return o.finish(run, constants.RunFailed), ctx.Err()
	}
	if !ok {
		o.skipRemaining(run, "text extraction failed",
			constants.StageEntityExtraction,
			constants.StageGenerativeExtraction,
			constants.StageSimilarityFilter,
			constants.StageValidation,
			constants.StageRiskScoring)
		return o.finish(run, constants.RunFailed), nil
	}

	// Deterministic extraction is pure and cannot fail.
	var atoms map[constants.EntityType][]entity.ExtractedAtom
	o.runStage(ctx, run, constants.StageEntityExtraction, func(context.Context) (any, error) {
		atoms = entities.Extract(run.RawText)
		run.Atoms = entities.Flatten(atoms)
		counts := map[constants.EntityType]int{}
		for t, as := range atoms {
			counts[t] = len(as)
		}
		return map[string]any{"counts": counts, "total": len(run.Atoms)}, nil
	})
	if aborted(run) {
		return o.finish(run, constants.RunFailed), ctx.Err()
	}

	ok = o.runStage(ctx, run, constants.StageGenerativeExtraction, func(ctx context.Context) (any, error) {
		out, err := o.gen.Extract(ctx, run.RawText, atoms)
		if err != nil {
			return nil, err
		}
		run.Document = &out.Document
		run.TotalCostUSD += out.CostUSD
		run.ModelUsed = out.Model
		return map[string]any{
			"cache_hit":    out.CacheHit,
			"cost_usd":     out.CostUSD,
			"input_units":  out.Usage.InputUnits,
			"output_units": out.Usage.OutputUnits,
			"confidence":   out.Document.ModelConfidence,
		}, nil
	})
	if aborted(run) {
		return o.finish(run, constants.RunFailed), ctx.Err()
	}
	if !ok {
		// Generative extraction is on the critical path: running
		// validation or risk scoring on a missing document would
		// fabricate results.
		o.skipRemaining(run, "generative extraction failed",
			constants.StageSimilarityFilter,
			constants.StageValidation,
			constants.StageRiskScoring)
		return o.finish(run, constants.RunFailed), nil
	}

	o.similarityStage(ctx, run)
	if aborted(run) {
		return o.finish(run, constants.RunFailed), ctx.Err()
	}

	o.runStage(ctx, run, constants.StageValidation, func(context.Context) (any, error) {
		run.Validation = o.validator.Validate(run.Document)
		return run.Validation, nil
	})
	if aborted(run) {
		return o.finish(run, constants.RunFailed), ctx.Err()
	}

	o.runStage(ctx, run, constants.StageRiskScoring, func(ctx context.Context) (any, error) {
		var sections []entity.SectionAnalysis
		if req.DeepReview {
			out, err := o.gen.AnalyzeSections(ctx, run.RawText)
			if err != nil {
				// Advisory; score without sections rather than fail.
				log.Warn("pipeline.deep_review.failed", "error", err)
			} else {
				sections = out.Sections
				run.TotalCostUSD += out.CostUSD
			}
		}
		run.Risk = o.risk.Score(risk.Input{
			RawText:    run.RawText,
			Doc:        run.Document,
			Validation: run.Validation,
			Sections:   sections,
		})
		return run.Risk, nil
	})
	if aborted(run) {
		return o.finish(run, constants.RunFailed), ctx.Err()
	}

	status := constants.RunCompleted
	if run.Validation == nil || !run.Validation.IsValid ||
		len(run.Validation.Warnings) > 0 || req.DeepReview {
		status = constants.RunPendingReview
	}
	o.finish(run, status)
	o.index(ctx, run)
	return run, nil
}

// runStage executes fn and appends exactly one stage record. It
// checks cancellation first: a cancelled run appends nothing and keeps
// completed stages intact.
func (o *Orchestrator) runStage(ctx context.Context, run *entity.PipelineRun, name string, fn func(context.Context) (any, error)) bool {
	if ctx.Err() != nil {
		run.Status = constants.RunFailed
		return false
	}
	start := o.now()
	payload, err := fn(ctx)
	stage := entity.PipelineStage{
		Name:       name,
		Status:     constants.StageSuccess,
		StartedAt:  start,
		DurationMs: o.now().Sub(start).Milliseconds(),
	}
	if err != nil {
		stage.Status = constants.StageFailed
		stage.Error = err.Error()
		o.log.Error("pipeline.stage.failed", "run_id", run.ID, "stage", name, "error", err)
	} else {
		stage.ResultPayload = mustJSON(payload)
		o.log.Info("pipeline.stage.done", "run_id", run.ID, "stage", name, "duration_ms", stage.DurationMs)
	}
	run.Stages = append(run.Stages, stage)
	return err == nil
}

// similarityStage is skippable: no store, or a store error, records a
// skipped stage rather than a failed one.
func (o *Orchestrator) similarityStage(ctx context.Context, run *entity.PipelineRun) {
	if o.similar == nil {
		o.skip(run, constants.StageSimilarityFilter, "similarity store not configured")
		return
	}
	if ctx.Err() != nil {
		run.Status = constants.RunFailed
		return
	}
	start := o.now()
	matches, err := o.similar.Similar(ctx, run.RawText, o.topK)
	if err != nil {
		o.log.Warn("pipeline.similarity.unavailable", "run_id", run.ID, "error", err)
		o.skip(run, constants.StageSimilarityFilter, "similarity store unavailable: "+err.Error())
		return
	}
	run.SimilarDocs = matches
	run.Stages = append(run.Stages, entity.PipelineStage{
		Name:          constants.StageSimilarityFilter,
		Status:        constants.StageSuccess,
		StartedAt:     start,
		DurationMs:    o.now().Sub(start).Milliseconds(),
		ResultPayload: mustJSON(map[string]any{"matches": len(matches)}),
	})
}

func (o *Orchestrator) skip(run *entity.PipelineRun, name, reason string) {
	run.Stages = append(run.Stages, entity.PipelineStage{
		Name:      name,
		Status:    constants.StageSkipped,
		StartedAt: o.now(),
		Error:     reason,
	})
}

func (o *Orchestrator) skipRemaining(run *entity.PipelineRun, reason string, names ...string) {
	for _, n := range names {
		o.skip(run, n, reason)
	}
}

func (o *Orchestrator) finish(run *entity.PipelineRun, status constants.RunStatus) *entity.PipelineRun {
	run.Status = status
	run.FinishedAt = o.now()
	o.log.Info("pipeline.run.done",
		"run_id", run.ID,
		"status", run.Status,
		"stages", len(run.Stages),
		"cost_usd", run.TotalCostUSD)
	return run
}

// index adds a finished run to the similarity store, best effort.
func (o *Orchestrator) index(ctx context.Context, run *entity.PipelineRun) {
	if o.similar == nil || run.Document == nil {
		return
	}
	summary := run.Document.Subject
	if summary == "" && len(run.Document.Parties) > 0 {
		summary = run.Document.Parties[0].Name
	}
	if err := o.similar.Add(ctx, run.ID.String(), summary, run.RawText); err != nil {
		o.log.Warn("pipeline.index.failed", "run_id", run.ID, "error", err)
	}
}

// aborted reports whether a cancellation check inside runStage marked
// the run failed without appending a stage.
func aborted(run *entity.PipelineRun) bool {
	return run.Status == constants.RunFailed
}

func mustJSON(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		raw, _ = json.Marshal(map[string]string{"marshal_error": err.Error()})
	}
	return raw
}
