package extract

import (
	"fmt"
	"os"
	"strings"
)

func (e *Extractor) extractPlainText(path string) (Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read text file: %w", err)
	}
	text := decodePlainText(raw)
	conf := float32(1.0)
	var warns []string
	if text != string(raw) && len(raw) > 0 {
		warns = append(warns, "input contained invalid UTF-8, replaced")
		conf = 0.9
	}
	return Result{
		Text:       normalizeText(text),
		Pages:      1,
		Confidence: conf,
		Method:     "plain-text",
		Warnings:   warns,
	}, nil
}

func decodePlainText(raw []byte) string {
	s := string(raw)
	s = strings.TrimPrefix(s, "\ufeff") // BOM
	return strings.ToValidUTF8(s, "�")
}

// normalizeText collapses Windows line endings and strips trailing
// whitespace from each line.
func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
