package gateway

import "testing"

func TestExtractJSONPlain(t *testing.T) {
	out, err := ExtractJSON(`{"a":1}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != `{"a":1}` {
		t.Fatalf("got %q", out)
	}
}

func TestExtractJSONCodeFence(t *testing.T) {
	raw := "```json\n{\"total\": 100, \"currency\": \"USD\"}\n```"
	out, err := ExtractJSON(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != `{"total": 100, "currency": "USD"}` {
		t.Fatalf("got %q", out)
	}
}

func TestExtractJSONSurroundingProse(t *testing.T) {
	raw := `Here is the extraction you asked for:
{"parties": [{"name": "Acme {Group}", "role": "contractor"}], "note": "a \"quoted\" brace }"}
Let me know if you need anything else.`
	out, err := ExtractJSON(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0] != '{' || out[len(out)-1] != '}' {
		t.Fatalf("not an object: %q", out)
	}
}

func TestExtractJSONUnrepairable(t *testing.T) {
	for _, raw := range []string{"", "no json here", `{"unclosed": true`, "[1,2,3]"} {
		if _, err := ExtractJSON(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}
