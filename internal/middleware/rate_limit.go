package middleware

import (
	"sync"

	"ledgersync-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

// RateLimiter hands out one token bucket per client IP.
type RateLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewRateLimiter allows rps requests per second per client with the given burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 10
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(rps),
		burst:    burst,
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.RLock()
	l, ok := rl.limiters[key]
	rl.mu.RUnlock()
	if ok {
		return l
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if l, ok := rl.limiters[key]; ok {
		return l
	}
	l = rate.NewLimiter(rl.limit, rl.burst)
	rl.limiters[key] = l
	return l
}

// Handler returns 429 once a client exhausts its bucket.
func (rl *RateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rl.limit <= 0 {
			return c.Next()
		}
		if !rl.limiter(c.IP()).Allow() {
			return response.Error(c, "Rate limit exceeded. Please try again later.", fiber.StatusTooManyRequests,
				map[string]interface{}{"limit": float64(rl.limit)})
		}
		return c.Next()
	}
}
