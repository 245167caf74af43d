package respcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// FingerprintInput carries the semantically relevant fields of a
// generation request. Any change to any field must change the hash.
type FingerprintInput struct {
	Provider     string
	Model        string
	Prompt       string
	SystemPrompt string
	Temperature  float32
	MaxTokens    int
	OutputFormat string // text|structured
}

// Fingerprint computes the deterministic cache key for a request.
// Fields are normalized first (provider/model lowercased, prompts
// whitespace-trimmed) so cosmetic differences do not fragment the
// cache.
func Fingerprint(in FingerprintInput) string {
	h := sha256.New()
	parts := []string{
		strings.ToLower(strings.TrimSpace(in.Provider)),
		strings.ToLower(strings.TrimSpace(in.Model)),
		strings.TrimSpace(in.Prompt),
		strings.TrimSpace(in.SystemPrompt),
		fmt.Sprintf("%.4f", in.Temperature),
		fmt.Sprintf("%d", in.MaxTokens),
		strings.ToLower(strings.TrimSpace(in.OutputFormat)),
	}
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0}) // field separator, prevents boundary collisions
	}
	return hex.EncodeToString(h.Sum(nil))
}
