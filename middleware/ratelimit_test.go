package middleware

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestIPRateLimiterWindow(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := NewIPRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "keys are limited independently")

	now = now.Add(61 * time.Second)
	assert.True(t, rl.Allow("a"))
}

func TestIPRateLimiterSweep(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := NewIPRateLimiter(5, time.Minute)
	rl.now = func() time.Time { return now }

	rl.Allow("old")
	now = now.Add(50 * time.Second)
	rl.Allow("fresh")
	now = now.Add(20 * time.Second)

	rl.Sweep()
	assert.NotContains(t, rl.requests, "old")
	assert.Contains(t, rl.requests, "fresh")
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/login", RateLimit(NewIPRateLimiter(1, time.Minute)), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodPost, "/login", "").Code)
	w := serve(r, http.MethodPost, "/login", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), `"code":429`)
}
