package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/glassboxhq/glassbox/internal/common"
	"github.com/glassboxhq/glassbox/internal/ratelimit"
	"github.com/glassboxhq/glassbox/internal/respcache"
)

// Output formats a Request can declare.
const (
	FormatText       = "text"
	FormatStructured = "structured"
)

// Request is the one call contract every backend serves.
type Request struct {
	Provider     string // hint; empty selects the configured default
	Prompt       string
	SystemPrompt string
	OutputFormat string // text|structured
	Temperature  float32
	MaxTokens    int
}

// Result is what Generate returns, from cache or backend.
type Result struct {
	Text       string          `json:"text"`
	Structured json.RawMessage `json:"structured,omitempty"`
	Usage      Usage           `json:"usage"`
	CostUSD    float64         `json:"cost_usd"`
	CacheHit   bool            `json:"cache_hit"`
	Provider   string          `json:"provider"`
	Model      string          `json:"model"`
}

// UsageTotals is a snapshot of the gateway's running counters.
type UsageTotals struct {
	Requests    int64
	CacheHits   int64
	InputUnits  int64
	OutputUnits int64
	CostUSD     float64
}

// Gateway multiplexes providers behind Generate.
type Gateway struct {
	providers   map[string]Provider
	defaultName string
	limiter     *ratelimit.Limiter
	cache       respcache.Store
	prices      PriceTable
	retry       RetryPolicy
	log         *slog.Logger

	mu     sync.Mutex
	totals UsageTotals
}

// New wires the gateway. providers must contain defaultName. cache
// may be nil to disable caching (tests); limiter must not be nil.
func New(providers map[string]Provider, defaultName string, limiter *ratelimit.Limiter, cache respcache.Store, prices PriceTable, retry RetryPolicy, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, ok := providers[defaultName]; !ok {
		return nil, fmt.Errorf("default provider %q not registered", defaultName)
	}
	return &Gateway{
		providers:   providers,
		defaultName: defaultName,
		limiter:     limiter,
		cache:       cache,
		prices:      prices,
		retry:       retry,
		log:         logger,
	}, nil
}

// Totals returns a copy of the running counters.
func (g *Gateway) Totals() UsageTotals {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.totals
}

// Generate runs one generation request: cache lookup, rate-limit
// admission, backend call with bounded retry, structured parsing,
// cache fill.
func (g *Gateway) Generate(ctx context.Context, req Request) (Result, error) {
	p, err := g.resolve(req.Provider)
	if err != nil {
		return Result{}, err
	}
	if req.OutputFormat == "" {
		req.OutputFormat = FormatText
	}

	fp := respcache.Fingerprint(respcache.FingerprintInput{
		Provider:     p.Name(),
		Model:        p.Model(),
		Prompt:       req.Prompt,
		SystemPrompt: req.SystemPrompt,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
		OutputFormat: req.OutputFormat,
	})

	// Cache hit: no rate-limit consumption, no backend call.
	if g.cache != nil {
		if entry, hit, cerr := g.cache.Get(ctx, fp); cerr == nil && hit {
			g.log.Info("gateway.generate.cache_hit", "provider", p.Name(), "fingerprint", fp[:12], "hits", entry.HitCount)
			res := Result{
				Text:     string(entry.Response),
				CacheHit: true,
				Provider: p.Name(),
				Model:    p.Model(),
			}
			if req.OutputFormat == FormatStructured {
				res.Structured = json.RawMessage(entry.Response)
			}
			g.mu.Lock()
			g.totals.CacheHits++
			g.mu.Unlock()
			return res, nil
		} else if cerr != nil {
			// A broken cache must not block generation.
			g.log.Warn("gateway.generate.cache_error", "error", cerr)
		}
	}

	units := EstimateUnits(req.Prompt, req.SystemPrompt, req.MaxTokens)
	estCost := g.prices.EstimateCost(p.Name(), units)
	if _, err := g.limiter.Acquire(units, estCost); err != nil {
		return Result{}, err
	}

	var text string
	var usage Usage
	callErr := g.retry.Do(ctx, func() error {
		var serr error
		text, usage, serr = p.Send(ctx, req.Prompt, Params{
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
			JSONOutput:  req.OutputFormat == FormatStructured,
			System:      req.SystemPrompt,
		})
		return serr
	})
	if callErr != nil {
		g.log.Error("gateway.generate.backend_failed", "provider", p.Name(), "error", callErr)
		return Result{}, callErr
	}

	cost := g.prices.Cost(p.Name(), usage)
	res := Result{
		Text:     text,
		Usage:    usage,
		CostUSD:  cost,
		Provider: p.Name(),
		Model:    p.Model(),
	}

	stored := []byte(text)
	if req.OutputFormat == FormatStructured {
		obj, perr := ExtractJSON(text)
		if perr != nil {
			return Result{}, &common.MalformedOutputError{Raw: text, Err: perr}
		}
		res.Structured = obj
		stored = obj
	}

	if g.cache != nil {
		reqPayload, _ := json.Marshal(req)
		if cerr := g.cache.Put(ctx, fp, reqPayload, stored, cost); cerr != nil {
			g.log.Warn("gateway.generate.cache_put_error", "error", cerr)
		}
	}

	g.mu.Lock()
	g.totals.Requests++
	g.totals.InputUnits += int64(usage.InputUnits)
	g.totals.OutputUnits += int64(usage.OutputUnits)
	g.totals.CostUSD += cost
	g.mu.Unlock()

	g.log.Info("gateway.generate.ok",
		"provider", p.Name(), "model", p.Model(),
		"input_units", usage.InputUnits, "output_units", usage.OutputUnits,
		"cost_usd", cost)
	return res, nil
}

func (g *Gateway) resolve(hint string) (Provider, error) {
	name := hint
	if name == "" {
		name = g.defaultName
	}
	p, ok := g.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not registered", name)
	}
	return p, nil
}
