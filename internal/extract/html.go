package extract

import (
	"fmt"
	"html"
	"os"
	"regexp"
	"strings"
)

// maxMarkupDepth caps the visitor recursion so hostile or broken
// nesting can't blow the stack.
const maxMarkupDepth = 64

func (e *Extractor) extractMarkup(path string) (Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read markup file: %w", err)
	}
	src := decodePlainText(raw)

	nodes, perr := parseMarkup(src)
	if perr == nil {
		var b strings.Builder
		if verr := visitMarkup(nodes, &b, 0); verr == nil {
			return Result{
				Text:       normalizeText(b.String()),
				Pages:      1,
				Confidence: 0.95,
				Method:     "markup",
			}, nil
		}
	}

	// Malformed markup: strip tags with a regex pass instead of
	// failing the whole extraction.
	e.log.Warn("extract.markup.fallback", "path", path, "error", perr)
	return Result{
		Text:       normalizeText(stripTagsFallback(src)),
		Pages:      1,
		Confidence: 0.6,
		Method:     "markup-fallback",
		Warnings:   []string{"malformed markup, used tag-stripping fallback"},
	}, nil
}

// markupNode is the typed node interface the visitor walks.
type markupNode interface{ isMarkupNode() }

type textNode struct{ text string }

type elemNode struct {
	tag      string
	children []markupNode
}

func (textNode) isMarkupNode() {}
func (*elemNode) isMarkupNode() {}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"table": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "section": true, "article": true,
	"header": true, "footer": true, "blockquote": true, "ul": true,
	"ol": true, "pre": true,
}

type markupParser struct {
	src string
	pos int
}

// parseMarkup builds a node tree from HTML-ish input. It is tolerant
// of stray close tags but reports unterminated tags and runaway
// nesting so the caller can fall back to regex stripping.
func parseMarkup(src string) ([]markupNode, error) {
	p := &markupParser{src: src}
	nodes, err := p.parseNodes("", 0)
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

func (p *markupParser) parseNodes(parentTag string, depth int) ([]markupNode, error) {
	if depth > maxMarkupDepth {
		return nil, fmt.Errorf("markup nested deeper than %d", maxMarkupDepth)
	}
	var nodes []markupNode
	for p.pos < len(p.src) {
		lt := strings.IndexByte(p.src[p.pos:], '<')
		if lt < 0 {
			nodes = append(nodes, textNode{text: p.src[p.pos:]})
			p.pos = len(p.src)
			return nodes, nil
		}
		if lt > 0 {
			nodes = append(nodes, textNode{text: p.src[p.pos : p.pos+lt]})
			p.pos += lt
		}

		rest := p.src[p.pos:]
		switch {
		case strings.HasPrefix(rest, "<!--"):
			end := strings.Index(rest, "-->")
			if end < 0 {
				return nil, fmt.Errorf("unterminated comment")
			}
			p.pos += end + 3

		case strings.HasPrefix(rest, "<!"), strings.HasPrefix(rest, "<?"):
			gt := strings.IndexByte(rest, '>')
			if gt < 0 {
				return nil, fmt.Errorf("unterminated declaration")
			}
			p.pos += gt + 1

		case strings.HasPrefix(rest, "</"):
			gt := strings.IndexByte(rest, '>')
			if gt < 0 {
				return nil, fmt.Errorf("unterminated close tag")
			}
			closed := strings.ToLower(strings.TrimSpace(rest[2:gt]))
			if closed == parentTag {
				p.pos += gt + 1
				return nodes, nil
			}
			// Stray close tag: drop it and keep going.
			p.pos += gt + 1

		default:
			gt := strings.IndexByte(rest, '>')
			if gt < 0 {
				return nil, fmt.Errorf("unterminated open tag")
			}
			inner := strings.TrimSuffix(rest[1:gt], "/")
			selfClosing := strings.HasSuffix(rest[1:gt], "/")
			p.pos += gt + 1
			fields := strings.Fields(inner)
			if len(fields) == 0 {
				continue
			}
			tag := strings.ToLower(fields[0])

			el := &elemNode{tag: tag}
			if tag == "script" || tag == "style" {
				// Raw-text elements: skip straight to the close tag.
				closeTag := "</" + tag
				idx := strings.Index(strings.ToLower(p.src[p.pos:]), closeTag)
				if idx < 0 {
					return nil, fmt.Errorf("unterminated %s element", tag)
				}
				p.pos += idx
				gt2 := strings.IndexByte(p.src[p.pos:], '>')
				if gt2 < 0 {
					return nil, fmt.Errorf("unterminated %s close tag", tag)
				}
				p.pos += gt2 + 1
			} else if !selfClosing && !voidElements[tag] {
				children, err := p.parseNodes(tag, depth+1)
				if err != nil {
					return nil, err
				}
				el.children = children
			}
			nodes = append(nodes, el)
		}
	}
	return nodes, nil
}

// visitMarkup is the recursive-descent text visitor: it emits text
// nodes in document order, inserts line breaks around block elements
// and skips script/style subtrees entirely.
func visitMarkup(nodes []markupNode, b *strings.Builder, depth int) error {
	if depth > maxMarkupDepth {
		return fmt.Errorf("markup nested deeper than %d", maxMarkupDepth)
	}
	for _, n := range nodes {
		switch t := n.(type) {
		case textNode:
			b.WriteString(html.UnescapeString(t.text))
		case *elemNode:
			if t.tag == "script" || t.tag == "style" {
				continue
			}
			if blockElements[t.tag] {
				b.WriteByte('\n')
			}
			if err := visitMarkup(t.children, b, depth+1); err != nil {
				return err
			}
			if blockElements[t.tag] {
				b.WriteByte('\n')
			}
		}
	}
	return nil
}

var (
	reScriptBlock = regexp.MustCompile(`(?is)<(script|style)\b.*?</(script|style)\s*>`)
	reTag         = regexp.MustCompile(`(?s)<[^>]*>`)
)

// stripTagsFallback is the lossy regex pass for markup the parser
// rejects.
func stripTagsFallback(src string) string {
	s := reScriptBlock.ReplaceAllString(src, " ")
	s = reTag.ReplaceAllString(s, " ")
	return html.UnescapeString(s)
}
