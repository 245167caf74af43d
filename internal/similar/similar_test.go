package similar

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFormatVector(t *testing.T) {
	if got := formatVector(nil); got != "[]" {
		t.Fatalf("empty = %q", got)
	}
	got := formatVector([]float64{1, -0.5, 0.25})
	want := "[1.000000,-0.500000,0.250000]"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestNormalize(t *testing.T) {
	vec := normalize([]float64{3, 4})
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if math.Abs(norm-1) > 1e-9 {
		t.Fatalf("norm = %v", norm)
	}
}

func TestEmbedClient(t *testing.T) {
	values := make([]float64, embedDimensions)
	values[0] = 2 // everything else zero, so the unit vector is e0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("api key header = %q", r.Header.Get("x-goog-api-key"))
		}
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.TaskType != "RETRIEVAL_QUERY" {
			t.Errorf("task type = %q", req.TaskType)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"embedding": map[string]any{"values": values},
		})
	}))
	defer srv.Close()

	t.Setenv("TEST_EMBED_KEY", "test-key")
	c := newEmbedClient(srv.URL, "TEST_EMBED_KEY")

	vec, err := c.Embed(context.Background(), "query text", "RETRIEVAL_QUERY")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != embedDimensions {
		t.Fatalf("dimensions = %d", len(vec))
	}
	if vec[0] != 1 {
		t.Fatalf("vec[0] = %v, want 1 after normalization", vec[0])
	}
}

func TestEmbedClientMissingKey(t *testing.T) {
	t.Setenv("TEST_EMBED_KEY", "")
	c := newEmbedClient("http://localhost:0", "TEST_EMBED_KEY")
	if _, err := c.Embed(context.Background(), "x", "RETRIEVAL_QUERY"); err == nil {
		t.Fatalf("expected error with unset key")
	}
}

func TestEmbedClientWrongDimensions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"embedding": map[string]any{"values": []float64{1, 2, 3}},
		})
	}))
	defer srv.Close()

	t.Setenv("TEST_EMBED_KEY", "k")
	c := newEmbedClient(srv.URL, "TEST_EMBED_KEY")
	if _, err := c.Embed(context.Background(), "x", "RETRIEVAL_QUERY"); err == nil {
		t.Fatalf("expected dimension error")
	}
}
