package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/glassboxhq/glassbox/internal/common"
)

// chatProvider speaks the OpenAI chat/completions wire shape. It
// serves both the openai and openrouter backends, which differ only in
// base URL and key.
type chatProvider struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	log     *slog.Logger
}

func (p *chatProvider) Name() string  { return p.name }
func (p *chatProvider) Model() string { return p.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float32        `json:"temperature"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (p *chatProvider) Send(ctx context.Context, prompt string, params Params) (string, Usage, error) {
	rid := uuid.New().String()
	start := time.Now()

	msgs := []chatMessage{}
	if params.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: params.System})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: prompt})

	body := chatRequest{
		Model:       p.model,
		Messages:    msgs,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	}
	if params.JSONOutput {
		body.ResponseFormat = map[string]any{"type": "json_object"}
	}

	bs, err := json.Marshal(body)
	if err != nil {
		return "", Usage{}, fmt.Errorf("encode request: %w", err)
	}

	endpoint := strings.TrimRight(p.baseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bs))
	if err != nil {
		return "", Usage{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	p.log.Debug("gateway.provider.request",
		"req_id", rid, "provider", p.name, "model", p.model, "bytes", len(bs))

	resp, err := p.client.Do(req)
	if err != nil {
		// Network errors and timeouts are transient.
		return "", Usage{}, common.NewTransientBackendError(p.name, 0, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			p.log.Warn("gateway.provider.body_close_error", "req_id", rid, "error", cerr)
		}
	}()

	raw, _ := io.ReadAll(resp.Body)
	elapsed := time.Since(start)

	if resp.StatusCode/100 != 2 {
		err := fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(raw), 512))
		p.log.Error("gateway.provider.http_error",
			"req_id", rid, "provider", p.name, "status", resp.StatusCode,
			"elapsed_ms", elapsed.Milliseconds())
		if retryableStatus(resp.StatusCode) {
			be := common.NewTransientBackendError(p.name, resp.StatusCode, err)
			return "", Usage{}, withRetryAfter(be, resp)
		}
		return "", Usage{}, common.NewStructuralBackendError(p.name, resp.StatusCode, err)
	}

	var cc chatResponse
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", Usage{}, common.NewTransientBackendError(p.name, resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	if len(cc.Choices) == 0 {
		return "", Usage{}, common.NewTransientBackendError(p.name, resp.StatusCode, errors.New("no choices in response"))
	}

	usage := Usage{InputUnits: cc.Usage.PromptTokens, OutputUnits: cc.Usage.CompletionTokens}
	p.log.Info("gateway.provider.ok",
		"req_id", rid, "provider", p.name, "model", p.model,
		"input_units", usage.InputUnits, "output_units", usage.OutputUnits,
		"elapsed_ms", elapsed.Milliseconds())
	return strings.TrimSpace(cc.Choices[0].Message.Content), usage, nil
}

// retryableStatus: 429 and 5xx are transient, every other non-2xx is
// structural (auth, bad request) and must not be retried.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func withRetryAfter(be *common.BackendError, resp *http.Response) error {
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			be.Err = fmt.Errorf("%w (retry after %ds)", be.Err, secs)
		}
	}
	return be
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
