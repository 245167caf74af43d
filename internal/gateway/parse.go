package gateway

import (
	"encoding/json"
	"errors"
	"strings"
)

// ExtractJSON parses raw model output as a JSON object. If the text
// does not parse as-is, one repair pass strips code-fence markers and
// extracts the first balanced JSON object before giving up.
func ExtractJSON(raw string) (json.RawMessage, error) {
	s := strings.TrimSpace(raw)
	if json.Valid([]byte(s)) && strings.HasPrefix(s, "{") {
		return json.RawMessage(s), nil
	}

	// Repair pass 1: strip markdown fences (```json ... ```).
	s = stripCodeFences(s)
	if json.Valid([]byte(s)) && strings.HasPrefix(strings.TrimSpace(s), "{") {
		return json.RawMessage(strings.TrimSpace(s)), nil
	}

	// Repair pass 2: first balanced {...} substring.
	if obj, ok := firstBalancedObject(s); ok && json.Valid([]byte(obj)) {
		return json.RawMessage(obj), nil
	}
	return nil, errors.New("no parseable JSON object in output")
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop an optional language tag on the fence line.
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		first := strings.TrimSpace(s[:i])
		if len(first) <= 10 && !strings.ContainsAny(first, "{}") {
			s = s[i+1:]
		}
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// firstBalancedObject scans for the first '{' and returns the
// substring up to its matching '}', tracking string literals and
// escapes so braces inside values don't break the count.
func firstBalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}
