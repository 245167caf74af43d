// Package respcache is a content-addressed store for generation
// responses, keyed by request fingerprint. The cache knows nothing
// about generation semantics: the caller computes the fingerprint.
package respcache

import (
	"context"

	"github.com/glassboxhq/glassbox/internal/entity"
)

// Store is the backing-store contract. Implementations must be safe
// for concurrent use by many pipeline runs and must never return an
// entry for a different fingerprint (no fuzzy matching).
type Store interface {
	// Get returns the entry for fingerprint, if present. A hit bumps
	// HitCount and LastAccessedAt as an observable side effect.
	Get(ctx context.Context, fingerprint string) (*entity.CacheEntry, bool, error)

	// Put stores a freshly produced response. Overwrites any existing
	// entry for the same fingerprint.
	Put(ctx context.Context, fingerprint string, request, response []byte, costUSD float64) error

	Close() error
}
