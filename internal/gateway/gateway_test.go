package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glassboxhq/glassbox/internal/common"
	"github.com/glassboxhq/glassbox/internal/ratelimit"
	"github.com/glassboxhq/glassbox/internal/respcache"
)

// fakeProvider returns scripted responses/errors in order.
type fakeProvider struct {
	name  string
	calls int
	send  func(call int) (string, Usage, error)
}

func (f *fakeProvider) Send(_ context.Context, _ string, _ Params) (string, Usage, error) {
	f.calls++
	return f.send(f.calls)
}

func (f *fakeProvider) Name() string  { return f.name }
func (f *fakeProvider) Model() string { return "fake-model" }

func fastRetry() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     func(int) time.Duration { return time.Millisecond },
		IsRetryable: common.IsTransient,
	}
}

func openLimiter() *ratelimit.Limiter {
	return ratelimit.New(common.LimitsConfig{
		RequestsPerMinute: 1000, UnitsPerMinute: 1 << 30,
		SpendPerHourUSD: 1000, SpendPerDayUSD: 1000,
	})
}

func newTestGateway(t *testing.T, p Provider, cache respcache.Store, limiter *ratelimit.Limiter) *Gateway {
	t.Helper()
	if limiter == nil {
		limiter = openLimiter()
	}
	g, err := New(map[string]Provider{p.Name(): p}, p.Name(), limiter, cache,
		PriceTable{p.Name(): {InputPerK: 0.001, OutputPerK: 0.002}}, fastRetry(), nil)
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	return g
}

func TestGenerateCachesAndSkipsBackend(t *testing.T) {
	p := &fakeProvider{name: "openai", send: func(int) (string, Usage, error) {
		return "generated text", Usage{InputUnits: 10, OutputUnits: 5}, nil
	}}
	g := newTestGateway(t, p, respcache.NewMemoryStore(), nil)

	req := Request{Prompt: "summarize", MaxTokens: 64}
	first, err := g.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("first generate: %v", err)
	}
	if first.CacheHit {
		t.Fatal("first call must be a miss")
	}
	second, err := g.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}
	if !second.CacheHit || second.Text != "generated text" {
		t.Fatalf("expected cached response, got %+v", second)
	}
	if p.calls != 1 {
		t.Fatalf("backend called %d times, want 1", p.calls)
	}
	totals := g.Totals()
	if totals.Requests != 1 || totals.CacheHits != 1 {
		t.Fatalf("totals: %+v", totals)
	}
}

func TestGenerateCacheHitBypassesRateLimiter(t *testing.T) {
	p := &fakeProvider{name: "openai", send: func(int) (string, Usage, error) {
		return "out", Usage{InputUnits: 1, OutputUnits: 1}, nil
	}}
	// One request of admission budget total.
	limiter := ratelimit.New(common.LimitsConfig{
		RequestsPerMinute: 1, UnitsPerMinute: 1 << 30,
		SpendPerHourUSD: 1000, SpendPerDayUSD: 1000,
	})
	g := newTestGateway(t, p, respcache.NewMemoryStore(), limiter)

	req := Request{Prompt: "p"}
	if _, err := g.Generate(context.Background(), req); err != nil {
		t.Fatalf("first generate: %v", err)
	}
	// The identical request is replayed from cache, so the drained
	// limiter never sees it.
	res, err := g.Generate(context.Background(), req)
	if err != nil || !res.CacheHit {
		t.Fatalf("expected cache hit, res=%+v err=%v", res, err)
	}
	// A different request hits the limiter and fails fast.
	var rle *common.RateLimitError
	if _, err := g.Generate(context.Background(), Request{Prompt: "other"}); !errors.As(err, &rle) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
}

func TestGenerateRetriesTransient(t *testing.T) {
	p := &fakeProvider{name: "openai", send: func(call int) (string, Usage, error) {
		if call < 3 {
			return "", Usage{}, common.NewTransientBackendError("openai", 500, errors.New("boom"))
		}
		return "ok", Usage{InputUnits: 1, OutputUnits: 1}, nil
	}}
	g := newTestGateway(t, p, nil, nil)

	res, err := g.Generate(context.Background(), Request{Prompt: "p"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Text != "ok" || p.calls != 3 {
		t.Fatalf("expected success on 3rd attempt, calls=%d", p.calls)
	}
}

func TestGenerateStructuralErrorNoRetry(t *testing.T) {
	p := &fakeProvider{name: "openai", send: func(int) (string, Usage, error) {
		return "", Usage{}, common.NewStructuralBackendError("openai", 401, errors.New("bad key"))
	}}
	g := newTestGateway(t, p, nil, nil)

	_, err := g.Generate(context.Background(), Request{Prompt: "p"})
	var be *common.BackendError
	if !errors.As(err, &be) || be.Transient {
		t.Fatalf("expected structural backend error, got %v", err)
	}
	if p.calls != 1 {
		t.Fatalf("structural error retried: %d calls", p.calls)
	}
}

func TestGenerateStructuredRepairsFencedOutput(t *testing.T) {
	p := &fakeProvider{name: "openai", send: func(int) (string, Usage, error) {
		return "```json\n{\"total\": 5}\n```", Usage{InputUnits: 1, OutputUnits: 1}, nil
	}}
	g := newTestGateway(t, p, respcache.NewMemoryStore(), nil)

	res, err := g.Generate(context.Background(), Request{Prompt: "p", OutputFormat: FormatStructured})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if string(res.Structured) != `{"total": 5}` {
		t.Fatalf("structured = %q", res.Structured)
	}

	// The cached replay must return the repaired JSON, not the fenced raw.
	res2, err := g.Generate(context.Background(), Request{Prompt: "p", OutputFormat: FormatStructured})
	if err != nil || !res2.CacheHit {
		t.Fatalf("replay: %+v %v", res2, err)
	}
	if string(res2.Structured) != `{"total": 5}` {
		t.Fatalf("cached structured = %q", res2.Structured)
	}
}

func TestGenerateMalformedOutput(t *testing.T) {
	p := &fakeProvider{name: "openai", send: func(int) (string, Usage, error) {
		return "definitely not json", Usage{InputUnits: 1, OutputUnits: 1}, nil
	}}
	g := newTestGateway(t, p, respcache.NewMemoryStore(), nil)

	_, err := g.Generate(context.Background(), Request{Prompt: "p", OutputFormat: FormatStructured})
	var moe *common.MalformedOutputError
	if !errors.As(err, &moe) {
		t.Fatalf("expected MalformedOutputError, got %v", err)
	}
	// A second identical call must not be served from cache: the
	// malformed result was never stored.
	if _, err := g.Generate(context.Background(), Request{Prompt: "p", OutputFormat: FormatStructured}); !errors.As(err, &moe) {
		t.Fatalf("expected MalformedOutputError on replay, got %v", err)
	}
	if p.calls != 2 {
		t.Fatalf("expected 2 backend calls, got %d", p.calls)
	}
}

func TestGenerateUnknownProviderHint(t *testing.T) {
	p := &fakeProvider{name: "openai", send: func(int) (string, Usage, error) {
		return "ok", Usage{}, nil
	}}
	g := newTestGateway(t, p, nil, nil)
	if _, err := g.Generate(context.Background(), Request{Provider: "nope", Prompt: "p"}); err == nil {
		t.Fatal("expected unknown provider error")
	}
}
