package respcache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/glassboxhq/glassbox/internal/entity"
)

// MemoryStore keeps entries in process memory. Entries never expire:
// eviction is an external retention concern, not the pipeline's.
type MemoryStore struct {
	c *gocache.Cache
	// Striped locks guard hit-count mutation per fingerprint, so
	// unrelated runs are not serialized on one global lock.
	locks [16]sync.Mutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{c: gocache.New(gocache.NoExpiration, 0)}
}

func (m *MemoryStore) stripe(fingerprint string) *sync.Mutex {
	if fingerprint == "" {
		return &m.locks[0]
	}
	return &m.locks[fingerprint[0]%16]
}

func (m *MemoryStore) Get(_ context.Context, fingerprint string) (*entity.CacheEntry, bool, error) {
	v, ok := m.c.Get(fingerprint)
	if !ok {
		return nil, false, nil
	}
	mu := m.stripe(fingerprint)
	mu.Lock()
	defer mu.Unlock()
	e := v.(*entity.CacheEntry)
	e.HitCount++
	e.LastAccessedAt = time.Now().UTC()
	cp := *e
	return &cp, true, nil
}

func (m *MemoryStore) Put(_ context.Context, fingerprint string, request, response []byte, costUSD float64) error {
	now := time.Now().UTC()
	m.c.Set(fingerprint, &entity.CacheEntry{
		FingerprintHash: fingerprint,
		RequestPayload:  request,
		Response:        response,
		CostUSD:         costUSD,
		CreatedAt:       now,
		LastAccessedAt:  now,
	}, gocache.NoExpiration)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
