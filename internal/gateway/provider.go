// Package gateway unifies interchangeable text-generation backends
// behind one call contract, with response caching, rate-limit
// admission, bounded retry and structured-output parsing.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// Params are the per-call generation knobs every backend understands.
type Params struct {
	Temperature float32
	MaxTokens   int
	JSONOutput  bool
	System      string
}

// Usage is the unit accounting one backend call reports.
type Usage struct {
	InputUnits  int `json:"input_units"`
	OutputUnits int `json:"output_units"`
}

// Provider is the uniform adapter each concrete backend implements.
// Providers are selected once at construction time; business logic
// never branches on the concrete type.
type Provider interface {
	Send(ctx context.Context, prompt string, p Params) (string, Usage, error)
	Name() string
	Model() string
}

// ProviderConfig mirrors common.ProviderConfig without importing it,
// keeping the adapter layer free of the config package.
type ProviderConfig struct {
	Name      string
	Model     string
	BaseURL   string
	APIKeyEnv string
}

// NewProvider builds the adapter named in cfg. Supported backends:
// openai, openrouter (OpenAI wire shape), gemini (Google SDK).
func NewProvider(ctx context.Context, cfg ProviderConfig, timeout time.Duration, logger *slog.Logger) (Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	key := ""
	if cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	client := &http.Client{Timeout: timeout}

	switch strings.ToLower(cfg.Name) {
	case "openai":
		base := cfg.BaseURL
		if base == "" {
			base = "https://api.openai.com/v1"
		}
		if key == "" {
			return nil, fmt.Errorf("openai provider requires %s", cfg.APIKeyEnv)
		}
		return &chatProvider{name: "openai", baseURL: base, apiKey: key, model: cfg.Model, client: client, log: logger}, nil

	case "openrouter":
		base := cfg.BaseURL
		if base == "" {
			base = "https://openrouter.ai/api/v1"
		}
		if key == "" {
			return nil, fmt.Errorf("openrouter provider requires %s", cfg.APIKeyEnv)
		}
		return &chatProvider{name: "openrouter", baseURL: base, apiKey: key, model: cfg.Model, client: client, log: logger}, nil

	case "gemini":
		if key == "" {
			return nil, fmt.Errorf("gemini provider requires %s", cfg.APIKeyEnv)
		}
		return newGeminiProvider(ctx, cfg.Model, key, logger)

	default:
		return nil, fmt.Errorf("unknown provider: %q (supported: openai, openrouter, gemini)", cfg.Name)
	}
}
