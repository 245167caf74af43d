package ratelimit

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/glassboxhq/glassbox/internal/common"
)

func testLimits(requests int) common.LimitsConfig {
	return common.LimitsConfig{
		RequestsPerMinute: requests,
		UnitsPerMinute:    1000000,
		SpendPerHourUSD:   1000,
		SpendPerDayUSD:    1000,
	}
}

func TestAcquireCapacityPlusOne(t *testing.T) {
	const capacity = 10
	l := New(testLimits(capacity))
	// Freeze time so no refill happens mid-test.
	frozen := time.Now()
	l.now = func() time.Time { return frozen }

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, limited := 0, 0
	for i := 0; i < capacity+1; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Acquire(1, 0.001)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			var rle *common.RateLimitError
			if !errors.As(err, &rle) {
				t.Errorf("expected RateLimitError, got %v", err)
				return
			}
			limited++
		}()
	}
	wg.Wait()
	if successes != capacity || limited != 1 {
		t.Fatalf("expected %d successes and 1 limited, got %d/%d", capacity, successes, limited)
	}
}

func TestAcquireAllOrNothing(t *testing.T) {
	// Spend/hour allows a single 1.0 acquisition; exhaust it, then
	// verify a failing acquire does not consume request tokens.
	cfg := common.LimitsConfig{
		RequestsPerMinute: 5,
		UnitsPerMinute:    1000,
		SpendPerHourUSD:   1.0,
		SpendPerDayUSD:    1000,
	}
	l := New(cfg)
	frozen := time.Now()
	l.now = func() time.Time { return frozen }

	if _, err := l.Acquire(10, 1.0); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	var rle *common.RateLimitError
	if _, err := l.Acquire(10, 0.5); !errors.As(err, &rle) {
		t.Fatalf("expected spend limit, got %v", err)
	}
	if rle.Dimension != DimSpendPerHour {
		t.Fatalf("expected %s, got %s", DimSpendPerHour, rle.Dimension)
	}
	// Requests bucket must be untouched by the failed acquire: four
	// zero-cost acquires are still possible.
	for i := 0; i < 4; i++ {
		if _, err := l.Acquire(1, 0); err != nil {
			t.Fatalf("acquire %d after failed acquire: %v", i, err)
		}
	}
	if _, err := l.Acquire(1, 0); err == nil {
		t.Fatal("expected requests bucket to be empty")
	}
}

func TestRefillContinuous(t *testing.T) {
	l := New(testLimits(60)) // one request token per second
	base := time.Now()
	current := base
	l.now = func() time.Time { return current }

	for i := 0; i < 60; i++ {
		if _, err := l.Acquire(1, 0); err != nil {
			t.Fatalf("drain acquire %d: %v", i, err)
		}
	}
	if _, err := l.Acquire(1, 0); err == nil {
		t.Fatal("expected drained bucket")
	}
	current = base.Add(2 * time.Second)
	if _, err := l.Acquire(1, 0); err != nil {
		t.Fatalf("expected refill after 2s, got %v", err)
	}
}

func TestReleaseReturnsRequestAndUnits(t *testing.T) {
	l := New(testLimits(1))
	frozen := time.Now()
	l.now = func() time.Time { return frozen }

	release, err := l.Acquire(100, 0.01)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := l.Acquire(1, 0); err == nil {
		t.Fatal("expected exhausted requests bucket")
	}
	release()
	release() // idempotent
	if _, err := l.Acquire(1, 0); err != nil {
		t.Fatalf("expected released token, got %v", err)
	}
}

func TestRetryAfterHint(t *testing.T) {
	l := New(testLimits(60))
	frozen := time.Now()
	l.now = func() time.Time { return frozen }

	for i := 0; i < 60; i++ {
		if _, err := l.Acquire(1, 0); err != nil {
			t.Fatalf("drain: %v", err)
		}
	}
	_, err := l.Acquire(1, 0)
	var rle *common.RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rle.RetryAfter <= 0 || rle.RetryAfter > 2*time.Second {
		t.Fatalf("unreasonable retry-after: %s", rle.RetryAfter)
	}
}
