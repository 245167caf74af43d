package extract

import (
	"context"
	"strings"
)

// pdfPath is the explicit decision result for how to read a PDF:
// text-layer extraction or the image/OCR route. Scanned documents
// have a text layer that is empty or nearly so.
type pdfPath int

const (
	useTextLayer pdfPath = iota
	needsOCR
)

// decidePDFPath routes scanned PDFs to OCR: a text layer that yields
// fewer than minCharsPerPage characters per page is treated as absent.
func decidePDFPath(text string, pages, minCharsPerPage int) pdfPath {
	if pages <= 0 {
		pages = 1
	}
	density := len(strings.TrimSpace(text)) / pages
	if density < minCharsPerPage {
		return needsOCR
	}
	return useTextLayer
}

func (e *Extractor) extractPDF(ctx context.Context, path string) (Result, error) {
	text, pages, warns, err := e.pdfToText(ctx, path)
	if err != nil {
		// No usable text layer at all; go straight to OCR.
		e.log.Warn("extract.pdf.text_layer_failed", "path", path, "error", err)
		return e.pdfToOCR(ctx, path, warns)
	}
	if decidePDFPath(text, pages, e.cfg.MinCharsPerPage) == needsOCR {
		e.log.Info("extract.pdf.low_density_fallback",
			"path", path, "pages", pages, "chars", len(strings.TrimSpace(text)))
		res, ocrErr := e.pdfToOCR(ctx, path, warns)
		if ocrErr != nil {
			// OCR unavailable: degrade to whatever the text layer gave
			// us rather than failing the extraction.
			return Result{
				Text:       normalizeText(text),
				Pages:      pages,
				Confidence: 0.2,
				Method:     "pdf-text",
				Warnings:   append(warns, "ocr fallback failed: "+ocrErr.Error()),
			}, nil
		}
		return res, nil
	}
	return Result{
		Text:       normalizeText(text),
		Pages:      pages,
		Confidence: 0.95,
		Method:     "pdf-text",
		Warnings:   warns,
	}, nil
}

func (e *Extractor) pdfToText(ctx context.Context, path string) (text string, pages int, warnings []string, err error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", 0, []string{string(errb)}, err
	}
	text = string(out)
	// pdftotext separates pages with form feeds.
	pages = 1 + strings.Count(text, "\f")
	return text, pages, nil, nil
}
