// Package ratelimit implements the token-bucket admission controller
// that bounds generation-backend usage across all concurrent runs.
package ratelimit

import (
	"sync"
	"time"

	"github.com/glassboxhq/glassbox/internal/common"
)

// Bucket dimensions, in the fixed order Acquire locks them.
const (
	DimRequestsPerMinute = "requests_per_minute"
	DimUnitsPerMinute    = "units_per_minute"
	DimSpendPerHour      = "spend_per_hour"
	DimSpendPerDay       = "spend_per_day"
)

// bucket is one continuously-refilling token bucket with its own lock.
type bucket struct {
	mu        sync.Mutex
	dimension string
	capacity  float64
	window    time.Duration
	tokens    float64
	last      time.Time
}

// refillLocked advances the bucket to now. Caller holds mu.
func (b *bucket) refillLocked(now time.Time) {
	elapsed := now.Sub(b.last).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.capacity / b.window.Seconds()
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.last = now
}

// retryAfterLocked estimates how long until `need` tokens accumulate.
func (b *bucket) retryAfterLocked(need float64) time.Duration {
	deficit := need - b.tokens
	if deficit <= 0 {
		return 0
	}
	secs := deficit * b.window.Seconds() / b.capacity
	return time.Duration(secs * float64(time.Second))
}

// Limiter guards four independent dimensions: requests/minute,
// consumed units/minute, spend/hour and spend/day. Safe for
// concurrent use; each bucket carries its own mutex.
type Limiter struct {
	buckets [4]*bucket
	now     func() time.Time
}

// New builds a Limiter from the configured limits. Non-positive spend
// limits disable that dimension's bookkeeping by treating it as a
// very large bucket.
func New(cfg common.LimitsConfig) *Limiter {
	now := time.Now()
	mk := func(dim string, capacity float64, window time.Duration) *bucket {
		if capacity <= 0 {
			capacity = 1e12
		}
		return &bucket{dimension: dim, capacity: capacity, window: window, tokens: capacity, last: now}
	}
	return &Limiter{
		buckets: [4]*bucket{
			mk(DimRequestsPerMinute, float64(cfg.RequestsPerMinute), time.Minute),
			mk(DimUnitsPerMinute, float64(cfg.UnitsPerMinute), time.Minute),
			mk(DimSpendPerHour, cfg.SpendPerHourUSD, time.Hour),
			mk(DimSpendPerDay, cfg.SpendPerDayUSD, 24*time.Hour),
		},
		now: time.Now,
	}
}

// demand returns what an acquisition of (units, cost) debits from each
// bucket, index-aligned with l.buckets.
func demand(units int, cost float64) [4]float64 {
	return [4]float64{1, float64(units), cost, cost}
}

// Acquire debits one request, `units` consumed units and `cost` USD
// from every dimension, all-or-nothing: if any dimension would be
// exceeded nothing is consumed and a typed *common.RateLimitError is
// returned. Acquire never blocks or sleeps; callers decide whether to
// retry after the hinted delay.
//
// The returned release func returns the request and unit tokens (not
// spend) for acquisitions whose backend call was never dispatched.
func (l *Limiter) Acquire(units int, cost float64) (func(), error) {
	now := l.now()
	need := demand(units, cost)

	// Lock all buckets in fixed order, check every dimension, then
	// commit. Failing fast before any debit keeps the accounting
	// idempotent under concurrency.
	for _, b := range l.buckets {
		b.mu.Lock()
		b.refillLocked(now)
	}
	for i, b := range l.buckets {
		if b.tokens < need[i] {
			err := &common.RateLimitError{
				Dimension:  b.dimension,
				RetryAfter: b.retryAfterLocked(need[i]),
			}
			for _, ub := range l.buckets {
				ub.mu.Unlock()
			}
			return nil, err
		}
	}
	for i, b := range l.buckets {
		b.tokens -= need[i]
		b.mu.Unlock()
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			// Spend stays debited: only undispatched request/unit
			// tokens come back.
			for i := 0; i < 2; i++ {
				b := l.buckets[i]
				b.mu.Lock()
				b.tokens += need[i]
				if b.tokens > b.capacity {
					b.tokens = b.capacity
				}
				b.mu.Unlock()
			}
		})
	}
	return release, nil
}
