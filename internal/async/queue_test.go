package async

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glassboxhq/glassbox/constants"
	"github.com/glassboxhq/glassbox/internal/entity"
	"github.com/glassboxhq/glassbox/internal/extract"
	"github.com/glassboxhq/glassbox/internal/genextract"
	"github.com/glassboxhq/glassbox/internal/pipeline"
	"github.com/glassboxhq/glassbox/internal/risk"
	"github.com/glassboxhq/glassbox/internal/validate"
)

type stubTextExtractor struct{}

func (stubTextExtractor) Extract(context.Context, string, constants.FileFormat) (extract.Result, error) {
	return extract.Result{Text: "Contract text. Force majeure applies.", Confidence: 1, Method: "plain-text"}, nil
}

type stubDocExtractor struct{}

func (stubDocExtractor) Extract(context.Context, string, map[constants.EntityType][]entity.ExtractedAtom) (*genextract.Output, error) {
	return &genextract.Output{Document: entity.StructuredDocument{
		Parties: []entity.Party{
			{Role: "supplier", Name: "Acme Supplies LLC", TaxID: "7707083893"},
			{Role: "buyer", Name: "Globex Industrial Ltd.", TaxID: "500100732259"},
		},
		Term:        entity.Term{StartDate: "2024-03-15", EndDate: "2024-12-31"},
		Financials:  entity.Financials{TotalAmount: 1000, Currency: "USD", PenaltyPercentPerDay: 0.1},
		Penalties:   []entity.Penalty{{Text: "0.1% per day", PercentPerDay: 0.1}},
		Termination: []entity.TerminationClause{{Text: "30 days notice"}},
	}}, nil
}

func (stubDocExtractor) AnalyzeSections(context.Context, string) (*genextract.SectionOutput, error) {
	return &genextract.SectionOutput{}, nil
}

func newQueueUnderTest(t *testing.T, opts ...Option) *RunQueue {
	t.Helper()
	v, err := validate.NewValidator(nil)
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	orch := pipeline.NewOrchestrator(stubTextExtractor{}, stubDocExtractor{}, v, risk.NewEngine(nil), nil, 5, nil)
	return NewRunQueue(orch, nil, opts...)
}

func TestQueueProcessesJobs(t *testing.T) {
	q := newQueueUnderTest(t, WithWorkers(2), WithQueueSize(8))
	defer q.Shutdown(context.Background())

	dir := t.TempDir()
	const jobs = 5
	done := make(chan *entity.PipelineRun, jobs)
	for i := 0; i < jobs; i++ {
		path := filepath.Join(dir, "doc"+string(rune('a'+i))+".txt")
		if err := os.WriteFile(path, []byte("contract"), 0o644); err != nil {
			t.Fatalf("write input: %v", err)
		}
		if err := q.Enqueue(context.Background(), Job{Request: pipeline.Request{FilePath: path}, Done: done}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	for i := 0; i < jobs; i++ {
		select {
		case run := <-done:
			if run == nil {
				t.Fatalf("nil run delivered")
			}
			if !run.Status.Terminal() {
				t.Fatalf("run status = %s, want terminal", run.Status)
			}
		case <-time.After(10 * time.Second):
			t.Fatalf("timed out waiting for run %d", i)
		}
	}
}

func TestQueueRejectsAfterShutdown(t *testing.T) {
	q := newQueueUnderTest(t, WithWorkers(1))
	q.Shutdown(context.Background())

	err := q.Enqueue(context.Background(), Job{Request: pipeline.Request{FilePath: "x.txt"}})
	if err != ErrQueueClosed {
		t.Fatalf("err = %v, want ErrQueueClosed", err)
	}
}
