package middleware

import "time"

func (rm *RateLimiterMiddleware) SetClock(now func() time.Time) { rm.now = now }

func (rm *RateLimiterMiddleware) EvictIdle() int { return rm.evictIdle() }

func (rm *RateLimiterMiddleware) ClientCount() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.clients)
}
