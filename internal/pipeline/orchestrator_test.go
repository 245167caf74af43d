package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/glassboxhq/glassbox/constants"
	"github.com/glassboxhq/glassbox/internal/common"
	"github.com/glassboxhq/glassbox/internal/entity"
	"github.com/glassboxhq/glassbox/internal/extract"
	"github.com/glassboxhq/glassbox/internal/genextract"
	"github.com/glassboxhq/glassbox/internal/risk"
	"github.com/glassboxhq/glassbox/internal/similar"
	"github.com/glassboxhq/glassbox/internal/validate"
)

const contractText = `SUPPLY CONTRACT No. 42
Dated 15.03.2024. Acme Supplies LLC, tax ID 7707083893, and Globex Industrial Ltd.
Total value 1000 USD. Penalty 0.1% per day. Force majeure applies.
Either party may terminate with 30 days notice.`

type fakeTextExtractor struct {
	res    extract.Result
	err    error
	onCall func()
}

func (f *fakeTextExtractor) Extract(context.Context, string, constants.FileFormat) (extract.Result, error) {
	if f.onCall != nil {
		f.onCall()
	}
	return f.res, f.err
}

type fakeDocExtractor struct {
	out         *genextract.Output
	err         error
	sections    *genextract.SectionOutput
	sectionsErr error
}

func (f *fakeDocExtractor) Extract(context.Context, string, map[constants.EntityType][]entity.ExtractedAtom) (*genextract.Output, error) {
	return f.out, f.err
}

func (f *fakeDocExtractor) AnalyzeSections(context.Context, string) (*genextract.SectionOutput, error) {
	return f.sections, f.sectionsErr
}

type fakeSimilarStore struct {
	matches []entity.SimilarDocument
	err     error
	added   int
}

func (f *fakeSimilarStore) Similar(context.Context, string, int) ([]entity.SimilarDocument, error) {
	return f.matches, f.err
}

func (f *fakeSimilarStore) Add(context.Context, string, string, string) error {
	f.added++
	return nil
}

func (f *fakeSimilarStore) Close() {}

func cleanDocument() entity.StructuredDocument {
	return entity.StructuredDocument{
		Parties: []entity.Party{
			{Role: "supplier", Name: "Acme Supplies LLC", TaxID: "7707083893"},
			{Role: "buyer", Name: "Globex Industrial Ltd.", TaxID: "500100732259"},
		},
		Subject:     "supply of industrial equipment",
		Term:        entity.Term{StartDate: "2024-03-15", EndDate: "2024-12-31"},
		Financials:  entity.Financials{TotalAmount: 1000, Currency: "USD", PenaltyPercentPerDay: 0.1},
		Penalties:   []entity.Penalty{{Text: "0.1% per day of overdue amount", PercentPerDay: 0.1}},
		Termination: []entity.TerminationClause{{Text: "30 days written notice", NoticeDays: 30}},
	}
}

func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contract.txt")
	if err := os.WriteFile(path, []byte(contractText), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

func newOrchestrator(t *testing.T, te extract.TextExtractor, gen DocExtractor, store *fakeSimilarStore) *Orchestrator {
	t.Helper()
	v, err := validate.NewValidator(nil)
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	var s similar.Store
	if store != nil {
		s = store
	}
	return NewOrchestrator(te, gen, v, risk.NewEngine(nil), s, 5, nil)
}

func stageByName(t *testing.T, run *entity.PipelineRun, name string) entity.PipelineStage {
	t.Helper()
	for _, s := range run.Stages {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("stage %s not recorded; stages = %+v", name, run.Stages)
	return entity.PipelineStage{}
}

func TestProcessCompleted(t *testing.T) {
	te := &fakeTextExtractor{res: extract.Result{Text: contractText, Pages: 1, Confidence: 1, Method: "plain-text"}}
	gen := &fakeDocExtractor{out: &genextract.Output{
		Document: cleanDocument(),
		CostUSD:  0.01,
		Model:    "gpt-4o-mini",
	}}
	o := newOrchestrator(t, te, gen, nil)

	run, err := o.Process(context.Background(), Request{FilePath: writeInput(t)})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if run.Status != constants.RunCompleted {
		t.Fatalf("status = %s, validation = %+v", run.Status, run.Validation)
	}
	for _, name := range []string{
		constants.StageTextExtraction,
		constants.StageEntityExtraction,
		constants.StageGenerativeExtraction,
		constants.StageValidation,
		constants.StageRiskScoring,
	} {
		if s := stageByName(t, run, name); s.Status != constants.StageSuccess {
			t.Fatalf("stage %s = %s (%s)", name, s.Status, s.Error)
		}
	}
	if s := stageByName(t, run, constants.StageSimilarityFilter); s.Status != constants.StageSkipped {
		t.Fatalf("similarity stage = %s, want skipped without a store", s.Status)
	}
	if len(run.Atoms) == 0 {
		t.Fatalf("no atoms recorded")
	}
	if run.TotalCostUSD != 0.01 || run.ModelUsed != "gpt-4o-mini" {
		t.Fatalf("cost/model = %v/%s", run.TotalCostUSD, run.ModelUsed)
	}
	if run.FinishedAt.IsZero() {
		t.Fatalf("FinishedAt not set")
	}
}

func TestProcessGenerativeFailureFailsRun(t *testing.T) {
	te := &fakeTextExtractor{res: extract.Result{Text: contractText, Confidence: 1}}
	gen := &fakeDocExtractor{err: common.NewTransientBackendError("openai", 503, errors.New("down"))}
	o := newOrchestrator(t, te, gen, nil)

	run, err := o.Process(context.Background(), Request{FilePath: writeInput(t)})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if run.Status != constants.RunFailed {
		t.Fatalf("status = %s", run.Status)
	}
	if s := stageByName(t, run, constants.StageTextExtraction); s.Status != constants.StageSuccess {
		t.Fatalf("text stage = %s", s.Status)
	}
	if s := stageByName(t, run, constants.StageGenerativeExtraction); s.Status != constants.StageFailed || s.Error == "" {
		t.Fatalf("generative stage = %+v", s)
	}
	for _, name := range []string{constants.StageSimilarityFilter, constants.StageValidation, constants.StageRiskScoring} {
		if s := stageByName(t, run, name); s.Status != constants.StageSkipped {
			t.Fatalf("stage %s = %s, want skipped after generative failure", name, s.Status)
		}
	}
}

func TestProcessTextFailureFailsRun(t *testing.T) {
	te := &fakeTextExtractor{err: common.ErrNoText}
	o := newOrchestrator(t, te, &fakeDocExtractor{}, nil)

	run, err := o.Process(context.Background(), Request{FilePath: writeInput(t)})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if run.Status != constants.RunFailed {
		t.Fatalf("status = %s", run.Status)
	}
	if s := stageByName(t, run, constants.StageTextExtraction); s.Status != constants.StageFailed {
		t.Fatalf("text stage = %+v", s)
	}
	for _, name := range []string{
		constants.StageEntityExtraction,
		constants.StageGenerativeExtraction,
		constants.StageValidation,
		constants.StageRiskScoring,
	} {
		if s := stageByName(t, run, name); s.Status != constants.StageSkipped {
			t.Fatalf("stage %s = %s", name, s.Status)
		}
	}
}

func TestProcessCancellationBetweenStages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	te := &fakeTextExtractor{
		res:    extract.Result{Text: contractText, Confidence: 1},
		onCall: cancel, // cancel while the first stage runs
	}
	o := newOrchestrator(t, te, &fakeDocExtractor{}, nil)

	run, err := o.Process(ctx, Request{FilePath: writeInput(t)})
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
	if run.Status != constants.RunFailed {
		t.Fatalf("status = %s", run.Status)
	}
	// The completed first stage survives; nothing after it is appended.
	if len(run.Stages) != 1 || run.Stages[0].Name != constants.StageTextExtraction {
		t.Fatalf("stages = %+v", run.Stages)
	}
	if run.Stages[0].Status != constants.StageSuccess {
		t.Fatalf("text stage = %s", run.Stages[0].Status)
	}
}

func TestProcessWarningsRouteToPendingReview(t *testing.T) {
	doc := cleanDocument()
	doc.Parties[0].TaxID = "" // missing_tax_id warning
	te := &fakeTextExtractor{res: extract.Result{Text: contractText, Confidence: 1}}
	o := newOrchestrator(t, te, &fakeDocExtractor{out: &genextract.Output{Document: doc}}, nil)

	run, err := o.Process(context.Background(), Request{FilePath: writeInput(t)})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if run.Status != constants.RunPendingReview {
		t.Fatalf("status = %s", run.Status)
	}
	if s := stageByName(t, run, constants.StageValidation); s.Status != constants.StageSuccess {
		t.Fatalf("validation stage = %s; a result with warnings is still a successful stage", s.Status)
	}
}

func TestProcessDeepReview(t *testing.T) {
	te := &fakeTextExtractor{res: extract.Result{Text: contractText, Confidence: 1}}
	gen := &fakeDocExtractor{
		out: &genextract.Output{Document: cleanDocument()},
		sections: &genextract.SectionOutput{
			Sections: []entity.SectionAnalysis{{Section: "liability", Warnings: []string{"one-sided"}}},
			CostUSD:  0.02,
		},
	}
	o := newOrchestrator(t, te, gen, nil)

	run, err := o.Process(context.Background(), Request{FilePath: writeInput(t), DeepReview: true})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if run.Status != constants.RunPendingReview {
		t.Fatalf("status = %s, deep review always routes to review", run.Status)
	}
	if run.Risk == nil || len(run.Risk.SectionScores) != 1 {
		t.Fatalf("risk = %+v, want section scores from deep review", run.Risk)
	}
	if run.TotalCostUSD != 0.02 {
		t.Fatalf("cost = %v, want the deep-review call accounted", run.TotalCostUSD)
	}
}

func TestProcessSimilarityStore(t *testing.T) {
	store := &fakeSimilarStore{matches: []entity.SimilarDocument{{DocumentID: "prev", Summary: "supply contract", Score: 0.91}}}
	te := &fakeTextExtractor{res: extract.Result{Text: contractText, Confidence: 1}}
	o := newOrchestrator(t, te, &fakeDocExtractor{out: &genextract.Output{Document: cleanDocument()}}, store)

	run, err := o.Process(context.Background(), Request{FilePath: writeInput(t)})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if s := stageByName(t, run, constants.StageSimilarityFilter); s.Status != constants.StageSuccess {
		t.Fatalf("similarity stage = %s", s.Status)
	}
	if len(run.SimilarDocs) != 1 || run.SimilarDocs[0].DocumentID != "prev" {
		t.Fatalf("similar docs = %+v", run.SimilarDocs)
	}
	if store.added != 1 {
		t.Fatalf("finished run not indexed, added = %d", store.added)
	}
}

func TestProcessSimilarityUnavailableSkips(t *testing.T) {
	store := &fakeSimilarStore{err: errors.New("connection refused")}
	te := &fakeTextExtractor{res: extract.Result{Text: contractText, Confidence: 1}}
	o := newOrchestrator(t, te, &fakeDocExtractor{out: &genextract.Output{Document: cleanDocument()}}, store)

	run, err := o.Process(context.Background(), Request{FilePath: writeInput(t)})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if s := stageByName(t, run, constants.StageSimilarityFilter); s.Status != constants.StageSkipped {
		t.Fatalf("similarity stage = %s, want skipped when the store is down", s.Status)
	}
	if run.Status == constants.RunFailed {
		t.Fatalf("similarity outage failed the run")
	}
}
