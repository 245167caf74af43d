// Package extract turns uploaded files of any supported format into a
// normalized text blob plus confidence and metadata. Extractors never
// fail on malformed input: quality degrades instead.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/glassboxhq/glassbox/constants"
)

// DefaultMinCharsPerPage is the text-layer density threshold below
// which a PDF is treated as scanned and routed to OCR. The value is
// the long-standing operating number; override it via Config, do not
// re-derive it.
const DefaultMinCharsPerPage = 200

// Result is the normalized outcome of one extraction.
type Result struct {
	Text       string
	Pages      int
	Confidence float32 // 0..1; document-level
	Method     string  // pdf-text | pdf-ocr | image-ocr | docx | plain-text | markup | markup-fallback
	Warnings   []string
	Duration   time.Duration

	// NormalizedDOCX carries the original container bytes when the
	// input already is the interchange format (pass-through).
	NormalizedDOCX []byte
}

// TextExtractor is the interface the orchestrator depends on.
type TextExtractor interface {
	Extract(ctx context.Context, path string, format constants.FileFormat) (Result, error)
}

type Config struct {
	Pdftotext       string // binary name or absolute path
	Pdftoppm        string
	Tesseract       string
	TesseractLang   string
	DPI             int
	MaxPages        int // 0 = no limit
	MinCharsPerPage int
}

// Extractor dispatches to a per-format strategy.
type Extractor struct {
	cfg    Config
	runner Runner
	log    *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.MinCharsPerPage <= 0 {
		cfg.MinCharsPerPage = DefaultMinCharsPerPage
	}
	return &Extractor{cfg: cfg, runner: execRunner{}, log: logger}
}

// Extract picks a strategy from the declared format, falling back to
// the file extension when the tag is empty.
func (e *Extractor) Extract(ctx context.Context, path string, format constants.FileFormat) (Result, error) {
	start := time.Now()
	if format == "" {
		format = constants.MapExtToFormat(filepath.Ext(path))
	}
	e.log.Debug("extract.start", "path", path, "format", format)

	var res Result
	var err error
	switch format {
	case constants.PDF:
		res, err = e.extractPDF(ctx, path)
	case constants.DOCX:
		res, err = e.extractDOCX(path)
	case constants.TXT:
		res, err = e.extractPlainText(path)
	case constants.HTML:
		res, err = e.extractMarkup(path)
	case constants.IMAGE:
		res, err = e.extractImage(ctx, path)
	default:
		return Result{}, fmt.Errorf("unsupported format: %q", format)
	}
	res.Duration = time.Since(start)
	if err != nil {
		e.log.Error("extract.failed", "path", path, "format", format, "error", err)
		return res, err
	}
	e.log.Info("extract.ok",
		"path", path, "format", format, "method", res.Method,
		"pages", res.Pages, "chars", len(res.Text), "confidence", res.Confidence,
		"elapsed_ms", res.Duration.Milliseconds())
	return res, nil
}
