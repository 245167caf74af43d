// Package audit renders a finished pipeline run as an XLSX workbook
// for reviewers: one sheet per concern, stage trail first.
package audit

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/glassboxhq/glassbox/internal/entity"
)

type Exporter struct {
	logger *slog.Logger
}

func NewExporter(logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{logger: logger}
}

// ExportRunXLSX returns the audit workbook as bytes.
func (e *Exporter) ExportRunXLSX(run *entity.PipelineRun) ([]byte, error) {
	start := time.Now()
	f := excelize.NewFile()

	if err := e.writeStages(f, run); err != nil {
		return nil, err
	}
	if err := e.writeAtoms(f, run); err != nil {
		return nil, err
	}
	if err := e.writeRisk(f, run); err != nil {
		return nil, err
	}
	// The default sheet excelize creates is replaced by Stages.
	_ = f.DeleteSheet("Sheet1")
	if idx, _ := f.GetSheetIndex("Stages"); idx >= 0 {
		f.SetActiveSheet(idx)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	e.logger.Info("audit.xlsx.ok",
		"run_id", run.ID.String(),
		"stages", len(run.Stages),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func newSheet(f *excelize.File, name string) error {
	if idx, _ := f.GetSheetIndex(name); idx == -1 {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func (e *Exporter) writeStages(f *excelize.File, run *entity.PipelineRun) error {
	const sheet = "Stages"
	if err := newSheet(f, sheet); err != nil {
		return err
	}
	writeRow(f, sheet, 1, []any{"Stage", "Status", "Started", "Duration (ms)", "Error"})
	row := 2
	for _, s := range run.Stages {
		writeRow(f, sheet, row, []any{
			s.Name,
			string(s.Status),
			s.StartedAt.Format(time.RFC3339),
			s.DurationMs,
			truncate(s.Error, 140),
		})
		row++
	}
	writeRow(f, sheet, row+1, []any{"Run", string(run.Status)})
	writeRow(f, sheet, row+2, []any{"Model", run.ModelUsed})
	writeRow(f, sheet, row+3, []any{"Total cost USD", run.TotalCostUSD})

	_ = f.SetColWidth(sheet, "A", "A", 24)
	_ = f.SetColWidth(sheet, "B", "B", 12)
	_ = f.SetColWidth(sheet, "C", "C", 22)
	_ = f.SetColWidth(sheet, "E", "E", 60)
	return nil
}

func (e *Exporter) writeAtoms(f *excelize.File, run *entity.PipelineRun) error {
	const sheet = "Atoms"
	if err := newSheet(f, sheet); err != nil {
		return err
	}
	writeRow(f, sheet, 1, []any{"Type", "Value", "Normalized", "Confidence", "Offset", "Context"})
	row := 2
	for _, a := range run.Atoms {
		writeRow(f, sheet, row, []any{
			string(a.Type),
			a.RawValue,
			a.NormalizedValue,
			a.Confidence,
			a.SourceOffset,
			truncate(a.ContextSnippet, 100),
		})
		row++
	}
	_ = f.SetColWidth(sheet, "A", "A", 16)
	_ = f.SetColWidth(sheet, "B", "C", 28)
	_ = f.SetColWidth(sheet, "F", "F", 60)
	return nil
}

func (e *Exporter) writeRisk(f *excelize.File, run *entity.PipelineRun) error {
	const sheet = "Risk"
	if err := newSheet(f, sheet); err != nil {
		return err
	}
	row := 1
	if run.Risk != nil {
		writeRow(f, sheet, row, []any{"Raw score", run.Risk.RawScore})
		writeRow(f, sheet, row+1, []any{"Mitigated score", run.Risk.MitigatedScore})
		writeRow(f, sheet, row+2, []any{"Level", string(run.Risk.Level)})
		row += 4

		writeRow(f, sheet, row, []any{"Code", "Title", "Severity", "Points", "Recommendation"})
		row++
		for _, fac := range run.Risk.Factors {
			writeRow(f, sheet, row, []any{
				fac.Code,
				fac.Title,
				string(fac.Severity),
				fac.Points,
				truncate(fac.Recommendation, 140),
			})
			row++
		}
		if len(run.Risk.SectionScores) > 0 {
			row++
			writeRow(f, sheet, row, []any{"Section", "Score", "Level"})
			row++
			for _, s := range run.Risk.SectionScores {
				writeRow(f, sheet, row, []any{s.Section, s.Score, string(s.Level)})
				row++
			}
		}
	}
	if run.Validation != nil {
		row++
		writeRow(f, sheet, row, []any{"Validation", "Field", "Code", "Message"})
		row++
		for _, i := range run.Validation.Errors {
			writeRow(f, sheet, row, []any{"error", i.Field, i.Code, truncate(i.Message, 140)})
			row++
		}
		for _, w := range run.Validation.Warnings {
			writeRow(f, sheet, row, []any{"warning", w.Field, w.Code, truncate(w.Message, 140)})
			row++
		}
	}
	_ = f.SetColWidth(sheet, "A", "A", 22)
	_ = f.SetColWidth(sheet, "B", "B", 32)
	_ = f.SetColWidth(sheet, "E", "E", 60)
	return nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
