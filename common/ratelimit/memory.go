package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MemoryLimiter keeps one token bucket per key in process.
// Buckets refill at limit/window and allow bursts up to limit.
type MemoryLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	logger   Logger
	now      func() time.Time
}

// NewMemoryLimiter creates a new in-process limiter
func NewMemoryLimiter(logger Logger) *MemoryLimiter {
	return &MemoryLimiter{
		limiters: make(map[string]*rate.Limiter),
		logger:   logger,
		now:      time.Now,
	}
}

// Check takes one token from key's bucket
func (m *MemoryLimiter) Check(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error) {
	if limit <= 0 {
		return &RateLimitResult{Allowed: true, Limit: limit}, nil
	}

	m.mu.Lock()
	l, ok := m.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Every(window/time.Duration(limit)), int(limit))
		m.limiters[key] = l
	}
	m.mu.Unlock()

	now := m.now()
	res := &RateLimitResult{Limit: limit}

	r := l.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		res.RetryAfterSeconds = int64(math.Ceil(delay.Seconds()))
	} else {
		res.Allowed = true
	}
	res.CurrentCount = limit - int64(math.Floor(l.TokensAt(now)))

	logResult(m.logger, key, res)
	return res, nil
}

// Size returns the number of tracked keys
func (m *MemoryLimiter) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.limiters)
}
