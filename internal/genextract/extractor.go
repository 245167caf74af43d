// Package genextract turns normalized document text plus deterministic
// seed atoms into a StructuredDocument through one structured
// generation call, validated against the contract schema before it is
// accepted.
package genextract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/glassboxhq/glassbox/constants"
	"github.com/glassboxhq/glassbox/internal/common"
	"github.com/glassboxhq/glassbox/internal/entity"
	"github.com/glassboxhq/glassbox/internal/gateway"
)

// Generator is the slice of the generation gateway this package needs.
type Generator interface {
	Generate(ctx context.Context, req gateway.Request) (gateway.Result, error)
}

// Config tunes the extraction calls.
type Config struct {
	Provider       string // gateway provider hint; empty uses the default
	Temperature    float32
	MaxTokens      int
	MaxPromptChars int
}

// Output carries the document together with the call's cost metadata
// for the run's audit trail.
type Output struct {
	Document entity.StructuredDocument
	Usage    gateway.Usage
	CostUSD  float64
	CacheHit bool
	Model    string
}

// SectionOutput is the deep-review result.
type SectionOutput struct {
	Sections []entity.SectionAnalysis
	Usage    gateway.Usage
	CostUSD  float64
	CacheHit bool
}

type Extractor struct {
	gen           Generator
	cfg           Config
	docSchema     *jsonschema.Schema
	sectionSchema *jsonschema.Schema
	log           *slog.Logger
}

// NewExtractor compiles both schemas once. A schema that fails to
// compile is a programming error surfaced at construction.
func NewExtractor(gen Generator, cfg Config, logger *slog.Logger) (*Extractor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.MaxPromptChars <= 0 {
		cfg.MaxPromptChars = DefaultMaxPromptChars
	}
	doc, err := compileSchema("contract.schema.json", BuildContractJSONSchema())
	if err != nil {
		return nil, err
	}
	section, err := compileSchema("sections.schema.json", BuildSectionAnalysisSchema())
	if err != nil {
		return nil, err
	}
	return &Extractor{gen: gen, cfg: cfg, docSchema: doc, sectionSchema: section, log: logger}, nil
}

func compileSchema(name string, m map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}
	s, err := c.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return s, nil
}

// Extract builds one prompt from the text and seed atoms and makes a
// single structured gateway call. Gateway errors propagate untouched:
// a failed call must never be papered over with default amounts or
// parties.
func (e *Extractor) Extract(ctx context.Context, text string, seed map[constants.EntityType][]entity.ExtractedAtom) (*Output, error) {
	res, err := e.gen.Generate(ctx, gateway.Request{
		Provider:     e.cfg.Provider,
		Prompt:       BuildUserPrompt(text, seed, e.cfg.MaxPromptChars),
		SystemPrompt: BuildSystemPrompt(),
		OutputFormat: gateway.FormatStructured,
		Temperature:  e.cfg.Temperature,
		MaxTokens:    e.cfg.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	if err := e.validate(e.docSchema, res.Structured); err != nil {
		return nil, &common.MalformedOutputError{Raw: string(res.Structured), Err: err}
	}
	var doc entity.StructuredDocument
	if err := json.Unmarshal(res.Structured, &doc); err != nil {
		return nil, &common.MalformedOutputError{Raw: string(res.Structured), Err: err}
	}

	e.log.Info("genextract.extract.done",
		"parties", len(doc.Parties),
		"total_amount", doc.Financials.TotalAmount,
		"cache_hit", res.CacheHit,
		"cost_usd", res.CostUSD)
	return &Output{
		Document: doc,
		Usage:    res.Usage,
		CostUSD:  res.CostUSD,
		CacheHit: res.CacheHit,
		Model:    res.Model,
	}, nil
}

// AnalyzeSections runs the optional deep review: one extra structured
// call producing per-section warnings and recommendations. Advisory
// output; callers treat a failure here as a skippable stage, not a run
// failure.
func (e *Extractor) AnalyzeSections(ctx context.Context, text string) (*SectionOutput, error) {
	res, err := e.gen.Generate(ctx, gateway.Request{
		Provider:     e.cfg.Provider,
		Prompt:       BuildSectionPrompt(text, e.cfg.MaxPromptChars),
		SystemPrompt: "You are a contract analysis engine. Return ONLY JSON that matches the provided JSON Schema.",
		OutputFormat: gateway.FormatStructured,
		Temperature:  e.cfg.Temperature,
		MaxTokens:    e.cfg.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	if err := e.validate(e.sectionSchema, res.Structured); err != nil {
		return nil, &common.MalformedOutputError{Raw: string(res.Structured), Err: err}
	}
	var payload struct {
		Sections []entity.SectionAnalysis `json:"sections"`
	}
	if err := json.Unmarshal(res.Structured, &payload); err != nil {
		return nil, &common.MalformedOutputError{Raw: string(res.Structured), Err: err}
	}
	e.log.Info("genextract.sections.done", "sections", len(payload.Sections), "cost_usd", res.CostUSD)
	return &SectionOutput{
		Sections: payload.Sections,
		Usage:    res.Usage,
		CostUSD:  res.CostUSD,
		CacheHit: res.CacheHit,
	}, nil
}

func (e *Extractor) validate(schema *jsonschema.Schema, raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return schema.Validate(v)
}
