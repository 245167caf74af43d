// Command glassbox processes documents through the analysis pipeline
// and prints the run records as JSON on stdout. One -file runs
// directly; additional positional paths are processed concurrently on
// the worker queue.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/glassboxhq/glassbox/constants"
	"github.com/glassboxhq/glassbox/internal/async"
	"github.com/glassboxhq/glassbox/internal/audit"
	"github.com/glassboxhq/glassbox/internal/common"
	"github.com/glassboxhq/glassbox/internal/entity"
	"github.com/glassboxhq/glassbox/internal/extract"
	"github.com/glassboxhq/glassbox/internal/gateway"
	"github.com/glassboxhq/glassbox/internal/genextract"
	"github.com/glassboxhq/glassbox/internal/logging"
	"github.com/glassboxhq/glassbox/internal/pipeline"
	"github.com/glassboxhq/glassbox/internal/ratelimit"
	"github.com/glassboxhq/glassbox/internal/respcache"
	"github.com/glassboxhq/glassbox/internal/risk"
	"github.com/glassboxhq/glassbox/internal/similar"
	"github.com/glassboxhq/glassbox/internal/validate"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config (defaults + env overrides apply)")
		filePath   = flag.String("file", "", "document to process")
		formatTag  = flag.String("format", "", "declared input format (PDF|DOCX|TXT|HTML|IMAGE); sniffed from the extension when empty")
		deepReview = flag.Bool("deep-review", false, "run the section-by-section generative review (adds cost and latency)")
		auditPath  = flag.String("audit-xlsx", "", "write the audit workbook to this path (single document only)")
	)
	flag.Parse()

	files := flag.Args()
	if *filePath != "" {
		files = append([]string{*filePath}, files...)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "usage: glassbox -file <document> [more documents...] [-config cfg.yaml] [-format PDF] [-deep-review] [-audit-xlsx out.xlsx]")
		os.Exit(2)
	}

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	logger := logging.Init(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch, cleanup, err := buildOrchestrator(ctx, cfg, logger)
	if cleanup != nil {
		defer cleanup()
	}
	if err != nil {
		logger.Error("glassbox.setup.error", "error", err)
		os.Exit(1)
	}

	var runs []*entity.PipelineRun
	if len(files) == 1 {
		run, perr := orch.Process(ctx, pipeline.Request{
			FilePath:   files[0],
			Format:     constants.FileFormat(*formatTag),
			DeepReview: *deepReview,
		})
		if perr != nil {
			logger.Error("glassbox.run.error", "path", files[0], "error", perr)
		}
		runs = append(runs, run)
	} else {
		runs = processBatch(ctx, cfg, logger, orch, files, constants.FileFormat(*formatTag), *deepReview)
	}

	failed := printRuns(logger, runs)

	if *auditPath != "" && len(runs) == 1 && runs[0] != nil {
		writeAudit(logger, runs[0], *auditPath)
	}
	if failed {
		os.Exit(1)
	}
}

// processBatch pushes every file through the worker queue and waits
// for all of them.
func processBatch(ctx context.Context, cfg common.Config, logger *slog.Logger, orch *pipeline.Orchestrator, files []string, format constants.FileFormat, deepReview bool) []*entity.PipelineRun {
	queue := async.NewRunQueue(orch, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithRunTimeout(cfg.Queue.RunTimeout),
	)
	defer queue.Shutdown(context.Background())

	done := make(chan *entity.PipelineRun, len(files))
	queued := 0
	for _, f := range files {
		err := queue.Enqueue(ctx, async.Job{
			Request: pipeline.Request{FilePath: f, Format: format, DeepReview: deepReview},
			Done:    done,
		})
		if err != nil {
			logger.Error("glassbox.enqueue.error", "path", f, "error", err)
			continue
		}
		queued++
	}

	runs := make([]*entity.PipelineRun, 0, queued)
	for i := 0; i < queued; i++ {
		runs = append(runs, <-done)
	}
	return runs
}

// printRuns writes the run records to stdout and reports whether any
// run failed.
func printRuns(logger *slog.Logger, runs []*entity.PipelineRun) bool {
	failed := false
	var printable []*entity.PipelineRun
	for _, r := range runs {
		if r == nil {
			failed = true
			continue
		}
		if r.Status == constants.RunFailed {
			failed = true
		}
		printable = append(printable, r)
	}

	var out []byte
	var err error
	if len(printable) == 1 {
		out, err = json.MarshalIndent(printable[0], "", "  ")
	} else {
		out, err = json.MarshalIndent(printable, "", "  ")
	}
	if err != nil {
		logger.Error("glassbox.output.marshal", "error", err)
		return true
	}
	fmt.Println(string(out))
	return failed
}

func writeAudit(logger *slog.Logger, run *entity.PipelineRun, path string) {
	raw, err := audit.NewExporter(logger).ExportRunXLSX(run)
	if err != nil {
		logger.Error("glassbox.audit.export", "error", err)
		return
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		logger.Error("glassbox.audit.write", "path", path, "error", err)
	}
}

// buildOrchestrator wires the component graph from config.
func buildOrchestrator(ctx context.Context, cfg common.Config, logger *slog.Logger) (*pipeline.Orchestrator, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	limiter := ratelimit.New(cfg.Limits)

	var cache respcache.Store
	switch cfg.Cache.Backend {
	case "sqlite":
		s, err := respcache.NewSQLiteStore(cfg.Cache.SQLitePath)
		if err != nil {
			return nil, cleanup, fmt.Errorf("cache: %w", err)
		}
		cache = s
	default:
		cache = respcache.NewMemoryStore()
	}
	cleanups = append(cleanups, func() { _ = cache.Close() })

	providers := map[string]gateway.Provider{}
	prices := gateway.PriceTable{}
	for _, pc := range cfg.Gateway.Providers {
		p, err := gateway.NewProvider(ctx, gateway.ProviderConfig{
			Name:      pc.Name,
			Model:     pc.Model,
			BaseURL:   pc.BaseURL,
			APIKeyEnv: pc.APIKeyEnv,
		}, cfg.Gateway.RequestTimeout, logger)
		if err != nil {
			return nil, cleanup, fmt.Errorf("provider %s: %w", pc.Name, err)
		}
		providers[pc.Name] = p
		prices[pc.Name] = gateway.Pricing{InputPerK: pc.PricePerKInput, OutputPerK: pc.PricePerKOutput}
	}

	retry := gateway.DefaultRetryPolicy()
	if cfg.Gateway.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.Gateway.MaxAttempts
	}
	gw, err := gateway.New(providers, cfg.Gateway.DefaultProvider, limiter, cache, prices, retry, logger)
	if err != nil {
		return nil, cleanup, fmt.Errorf("gateway: %w", err)
	}

	gen, err := genextract.NewExtractor(gw, genextract.Config{Provider: cfg.Gateway.DefaultProvider}, logger)
	if err != nil {
		return nil, cleanup, fmt.Errorf("extractor: %w", err)
	}
	validator, err := validate.NewValidator(logger)
	if err != nil {
		return nil, cleanup, fmt.Errorf("validator: %w", err)
	}

	var simStore similar.Store
	if cfg.Similarity.Enabled {
		s, err := similar.NewPGStore(ctx, cfg.Similarity, logger)
		if err != nil {
			// Advisory collaborator: run without it.
			logger.Warn("glassbox.similarity.unavailable", "error", err)
		} else {
			simStore = s
			cleanups = append(cleanups, s.Close)
		}
	}

	textExtractor := extract.NewExtractor(extract.Config{
		Pdftotext:       cfg.Extract.Pdftotext,
		Pdftoppm:        cfg.Extract.Pdftoppm,
		Tesseract:       cfg.Extract.Tesseract,
		TesseractLang:   cfg.Extract.TesseractLang,
		DPI:             cfg.Extract.DPI,
		MaxPages:        cfg.Extract.MaxPages,
		MinCharsPerPage: cfg.Extract.MinCharsPerPage,
	}, logger)

	orch := pipeline.NewOrchestrator(textExtractor, gen, validator, risk.NewEngine(logger), simStore, cfg.Similarity.TopK, logger)
	return orch, cleanup, nil
}
