package similar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"
)

const embedDimensions = 768

// embedClient calls an embedContent-style HTTP endpoint and returns a
// normalized vector.
type embedClient struct {
	endpoint string
	keyEnv   string
	client   *http.Client
}

func newEmbedClient(endpoint, keyEnv string) *embedClient {
	return &embedClient{
		endpoint: endpoint,
		keyEnv:   keyEnv,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type embedRequest struct {
	Model                string       `json:"model"`
	Content              embedContent `json:"content"`
	TaskType             string       `json:"taskType,omitempty"`
	OutputDimensionality int          `json:"outputDimensionality,omitempty"`
}

type embedContent struct {
	Parts []embedPart `json:"parts"`
}

type embedPart struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding struct {
		Values []float64 `json:"values"`
	} `json:"embedding"`
}

// Embed returns a unit-length embedding for text. taskType steers the
// backend between indexing and query embeddings.
func (c *embedClient) Embed(ctx context.Context, text, taskType string) ([]float64, error) {
	apiKey := os.Getenv(c.keyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("embedding key env %s not set", c.keyEnv)
	}

	body, err := json.Marshal(embedRequest{
		Model:                "models/gemini-embedding-001",
		Content:              embedContent{Parts: []embedPart{{Text: text}}},
		TaskType:             taskType,
		OutputDimensionality: embedDimensions,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed backend status %d", resp.StatusCode)
	}
	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	vec := parsed.Embedding.Values
	if len(vec) != embedDimensions {
		return nil, fmt.Errorf("embedding has %d dimensions, want %d", len(vec), embedDimensions)
	}
	return normalize(vec), nil
}

func normalize(vec []float64) []float64 {
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
