package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/glassboxhq/glassbox/internal/common"
)

// geminiProvider adapts the Google generative-ai SDK to the Provider
// contract.
type geminiProvider struct {
	client *genai.Client
	model  string
	log    *slog.Logger
}

func newGeminiProvider(ctx context.Context, model, apiKey string, logger *slog.Logger) (*geminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &geminiProvider{client: client, model: model, log: logger}, nil
}

func (p *geminiProvider) Name() string  { return "gemini" }
func (p *geminiProvider) Model() string { return p.model }

func (p *geminiProvider) Send(ctx context.Context, prompt string, params Params) (string, Usage, error) {
	m := p.client.GenerativeModel(p.model)
	m.SetTemperature(params.Temperature)
	if params.MaxTokens > 0 {
		m.SetMaxOutputTokens(int32(params.MaxTokens))
	}
	if params.JSONOutput {
		m.ResponseMIMEType = "application/json"
	}
	if params.System != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(params.System)}}
	}

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", Usage{}, classifyGeminiError(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", Usage{}, common.NewTransientBackendError("gemini", 0, errors.New("no candidates in response"))
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}

	var usage Usage
	if resp.UsageMetadata != nil {
		usage.InputUnits = int(resp.UsageMetadata.PromptTokenCount)
		usage.OutputUnits = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	p.log.Info("gateway.provider.ok",
		"provider", "gemini", "model", p.model,
		"input_units", usage.InputUnits, "output_units", usage.OutputUnits)
	return strings.TrimSpace(b.String()), usage, nil
}

func classifyGeminiError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if retryableStatus(gerr.Code) {
			return common.NewTransientBackendError("gemini", gerr.Code, err)
		}
		return common.NewStructuralBackendError("gemini", gerr.Code, err)
	}
	// Anything without an HTTP status is a network-level failure.
	return common.NewTransientBackendError("gemini", 0, err)
}
