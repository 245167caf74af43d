package entity

import "time"

// CacheEntry is one stored generation response, addressed by the
// request fingerprint. Created on miss; HitCount and LastAccessedAt
// are bumped on every hit. The pipeline never deletes entries.
type CacheEntry struct {
	FingerprintHash string    `json:"fingerprint_hash"`
	RequestPayload  []byte    `json:"request_payload,omitempty"`
	Response        []byte    `json:"response"`
	CostUSD         float64   `json:"cost_usd"`
	HitCount        int64     `json:"hit_count"`
	CreatedAt       time.Time `json:"created_at"`
	LastAccessedAt  time.Time `json:"last_accessed_at"`
}
