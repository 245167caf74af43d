package respcache

import (
	"context"
	"path/filepath"
	"testing"
)

func TestFingerprintDeterministic(t *testing.T) {
	in := FingerprintInput{
		Provider: "openai", Model: "gpt-4o-mini",
		Prompt: "analyze this", SystemPrompt: "you are a contract analyst",
		Temperature: 0.1, MaxTokens: 2048, OutputFormat: "structured",
	}
	if Fingerprint(in) != Fingerprint(in) {
		t.Fatal("fingerprint not deterministic")
	}
}

func TestFingerprintSensitivity(t *testing.T) {
	base := FingerprintInput{
		Provider: "openai", Model: "gpt-4o-mini",
		Prompt: "p", SystemPrompt: "s",
		Temperature: 0.1, MaxTokens: 100, OutputFormat: "text",
	}
	variants := []FingerprintInput{base, base, base, base, base, base, base}
	variants[0].Provider = "gemini"
	variants[1].Model = "gpt-4o"
	variants[2].Prompt = "q"
	variants[3].SystemPrompt = "t"
	variants[4].Temperature = 0.2
	variants[5].MaxTokens = 101
	variants[6].OutputFormat = "structured"

	ref := Fingerprint(base)
	seen := map[string]bool{ref: true}
	for i, v := range variants {
		fp := Fingerprint(v)
		if seen[fp] {
			t.Fatalf("variant %d collided", i)
		}
		seen[fp] = true
	}
}

func TestFingerprintNormalization(t *testing.T) {
	a := FingerprintInput{Provider: "OpenAI", Model: "GPT-4o-Mini", Prompt: "  hello  "}
	b := FingerprintInput{Provider: "openai", Model: "gpt-4o-mini", Prompt: "hello"}
	if Fingerprint(a) != Fingerprint(b) {
		t.Fatal("cosmetic differences should not change the fingerprint")
	}
}

func testStoreWriteThenRead(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	fp := Fingerprint(FingerprintInput{Provider: "openai", Model: "m", Prompt: "p"})

	if _, hit, err := store.Get(ctx, fp); err != nil || hit {
		t.Fatalf("expected clean miss, hit=%v err=%v", hit, err)
	}
	if err := store.Put(ctx, fp, []byte(`{"prompt":"p"}`), []byte("response body"), 0.0123); err != nil {
		t.Fatalf("put: %v", err)
	}
	e, hit, err := store.Get(ctx, fp)
	if err != nil || !hit {
		t.Fatalf("expected hit, hit=%v err=%v", hit, err)
	}
	if string(e.Response) != "response body" {
		t.Fatalf("wrong response: %q", e.Response)
	}
	if e.HitCount != 1 {
		t.Fatalf("expected hit_count=1, got %d", e.HitCount)
	}
	e2, _, _ := store.Get(ctx, fp)
	if e2.HitCount != 2 {
		t.Fatalf("expected hit_count=2, got %d", e2.HitCount)
	}

	// A different fingerprint must never see this entry.
	other := Fingerprint(FingerprintInput{Provider: "openai", Model: "m", Prompt: "different"})
	if _, hit, _ := store.Get(ctx, other); hit {
		t.Fatal("cross-fingerprint hit")
	}
}

func TestMemoryStore(t *testing.T) {
	testStoreWriteThenRead(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	defer store.Close()
	testStoreWriteThenRead(t, store)
}
