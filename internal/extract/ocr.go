package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

func (e *Extractor) extractImage(ctx context.Context, path string) (Result, error) {
	text, conf, warns, err := e.ocrPage(ctx, path)
	if err != nil {
		return Result{Warnings: warns}, err
	}
	return Result{
		Text:       normalizeText(text),
		Pages:      1,
		Confidence: conf,
		Method:     "image-ocr",
		Warnings:   warns,
	}, nil
}

// pdfToOCR rasterizes every page and OCRs them one by one. The
// document confidence is the mean of the per-page (per-line averaged)
// confidences.
func (e *Extractor) pdfToOCR(ctx context.Context, path string, warns []string) (Result, error) {
	tmpDir, err := os.MkdirTemp("", "gb-ocr-*")
	if err != nil {
		return Result{Warnings: warns}, err
	}
	defer func() {
		if rerr := os.RemoveAll(tmpDir); rerr != nil {
			e.log.Warn("extract.ocr.tmp_cleanup_failed", "dir", tmpDir, "error", rerr)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", strconv.Itoa(e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return Result{Warnings: append(warns, string(errb))}, err
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		warns = append(warns, fmt.Sprintf("truncated to first %d pages", e.cfg.MaxPages))
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return Result{Warnings: append(warns, "pdftoppm produced no images")}, fmt.Errorf("no pages rendered")
	}

	var b strings.Builder
	var confSum float32
	scored := 0
	for _, img := range matches {
		text, conf, w, oerr := e.ocrPage(ctx, img)
		warns = append(warns, w...)
		if oerr != nil {
			warns = append(warns, oerr.Error())
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n") // keep a page break marker
		}
		b.WriteString(text)
		confSum += conf
		scored++
	}

	var conf float32
	if scored > 0 {
		conf = confSum / float32(scored)
	}
	return Result{
		Text:       normalizeText(b.String()),
		Pages:      len(matches),
		Confidence: conf,
		Method:     "pdf-ocr",
		Warnings:   warns,
	}, nil
}

// ocrPage runs tesseract in TSV mode on one image and reconstructs
// the recognized lines, averaging per-line word confidence.
func (e *Extractor) ocrPage(ctx context.Context, imgPath string) (string, float32, []string, error) {
	args := []string{imgPath, "stdout", "-l", e.cfg.TesseractLang, "tsv"}
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", 0, []string{string(errb)}, fmt.Errorf("tesseract: %w", err)
	}
	text, conf := parseTesseractTSV(string(out))
	if strings.TrimSpace(text) == "" {
		// TSV mode produced nothing; retry plain text output.
		plain, errb2, err2 := e.runner.Run(ctx, e.cfg.Tesseract, imgPath, "stdout", "-l", e.cfg.TesseractLang)
		if err2 != nil {
			return "", 0, []string{string(errb2)}, fmt.Errorf("tesseract: %w", err2)
		}
		return string(plain), 0.3, []string{"tsv output empty, used plain ocr text"}, nil
	}
	return text, conf, nil, nil
}

// parseTesseractTSV reconstructs line text from TSV word rows
// (level 5) and returns the mean of per-line mean word confidences,
// scaled to 0..1.
func parseTesseractTSV(tsv string) (string, float32) {
	type lineAcc struct {
		words []string
		confs []float64
	}
	var order []string
	lines := map[string]*lineAcc{}

	for i, row := range strings.Split(tsv, "\n") {
		if i == 0 {
			continue // header
		}
		cols := strings.Split(row, "\t")
		if len(cols) < 12 {
			continue
		}
		if cols[0] != "5" { // word rows only
			continue
		}
		word := strings.TrimSpace(cols[11])
		if word == "" {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < 0 {
			continue
		}
		// line identity: block, paragraph, line numbers
		key := cols[2] + "/" + cols[3] + "/" + cols[4]
		acc, ok := lines[key]
		if !ok {
			acc = &lineAcc{}
			lines[key] = acc
			order = append(order, key)
		}
		acc.words = append(acc.words, word)
		acc.confs = append(acc.confs, conf)
	}

	var b strings.Builder
	var confSum float64
	for _, key := range order {
		acc := lines[key]
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.Join(acc.words, " "))
		var lineSum float64
		for _, c := range acc.confs {
			lineSum += c
		}
		confSum += lineSum / float64(len(acc.confs))
	}
	if len(order) == 0 {
		return "", 0
	}
	return b.String(), float32(confSum / float64(len(order)) / 100.0)
}
