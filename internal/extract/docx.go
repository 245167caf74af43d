package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
)

// extractDOCX pulls paragraph and table text out of the OOXML
// container. The original bytes pass through as the normalized
// interchange format.
func (e *Extractor) extractDOCX(path string) (Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read docx: %w", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return Result{}, fmt.Errorf("open docx container: %w", err)
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			rc, oerr := f.Open()
			if oerr != nil {
				return Result{}, fmt.Errorf("open document.xml: %w", oerr)
			}
			docXML, err = io.ReadAll(rc)
			_ = rc.Close()
			if err != nil {
				return Result{}, fmt.Errorf("read document.xml: %w", err)
			}
			break
		}
	}
	if docXML == nil {
		return Result{}, fmt.Errorf("docx container has no word/document.xml")
	}

	text, warns := walkDocumentXML(docXML)
	conf := float32(0.95)
	if strings.TrimSpace(text) == "" {
		conf = 0
		warns = append(warns, "document.xml contained no text runs")
	}
	return Result{
		Text:           normalizeText(text),
		Pages:          1,
		Confidence:     conf,
		Method:         "docx",
		Warnings:       warns,
		NormalizedDOCX: raw,
	}, nil
}

// walkDocumentXML streams the OOXML body and flattens runs in
// document order: paragraphs become lines, table cells are separated
// by tabs. Malformed XML terminates the walk but keeps whatever was
// decoded so far.
func walkDocumentXML(docXML []byte) (string, []string) {
	dec := xml.NewDecoder(bytes.NewReader(docXML))
	var b strings.Builder
	var warns []string
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			warns = append(warns, "document.xml truncated: "+err.Error())
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				var runText string
				if derr := dec.DecodeElement(&runText, &t); derr == nil {
					b.WriteString(runText)
				}
			case "tab":
				b.WriteByte('\t')
			case "br":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				b.WriteByte('\n')
			case "tc":
				b.WriteByte('\t')
			case "tr":
				b.WriteByte('\n')
			}
		}
	}
	return b.String(), warns
}
