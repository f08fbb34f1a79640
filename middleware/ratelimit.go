package middleware

import (
	"net/http"
	"sync"
	"time"

	"forum/models"

	"github.com/gin-gonic/gin"
)

// IPRateLimiter allows at most limit requests per key inside a sliding window.
type IPRateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time
}

func NewIPRateLimiter(limit int, window time.Duration) *IPRateLimiter {
	return &IPRateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

func (rl *IPRateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)

	// Clean old requests
	requests := rl.requests[key]
	i := 0
	for ; i < len(requests); i++ {
		if requests[i].After(cutoff) {
			break
		}
	}
	requests = requests[i:]

	if len(requests) >= rl.limit {
		rl.requests[key] = requests
		return false
	}

	rl.requests[key] = append(requests, now)
	return true
}

// Sweep drops keys with no request inside the window.
func (rl *IPRateLimiter) Sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.window)
	for key, requests := range rl.requests {
		if len(requests) == 0 || !requests[len(requests)-1].After(cutoff) {
			delete(rl.requests, key)
		}
	}
}

func RateLimit(rl *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP() + " " + c.FullPath()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.Response{
				Code:    http.StatusTooManyRequests,
				Data:    nil,
				Message: "too many requests, please try again later",
			})
			return
		}
		c.Next()
	}
}
