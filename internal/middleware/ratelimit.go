package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"greentera/internal/utils"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// idleLimiterTTL drops limiters of callers that stopped scanning.
const idleLimiterTTL = time.Hour

// RateLimiter hands out one token bucket per key. Buckets live in a
// bounded TTL cache so idle callers are forgotten.
type RateLimiter struct {
	interval time.Duration
	burst    int
	limiters *utils.TTLCache[*rate.Limiter]
}

// NewRateLimiter allows perMinute requests per key with the given burst.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	return &RateLimiter{
		interval: time.Minute / time.Duration(perMinute),
		burst:    burst,
		limiters: utils.NewTTLCache[*rate.Limiter](10000),
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	l := rl.limiters.GetOrSet(key, idleLimiterTTL, func() *rate.Limiter {
		return rate.NewLimiter(rate.Every(rl.interval), rl.burst)
	})
	// refresh the expiry on use
	rl.limiters.Set(key, l, idleLimiterTTL)
	return l.Allow()
}

// PerUser limits signed-in users by id and everybody else by client IP.
func (rl *RateLimiter) PerUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if u := CurrentUser(c); u != nil {
			key = "user:" + u.ID
		}
		if !rl.Allow(key) {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(rl.interval.Seconds()))))
			abortJSON(c, http.StatusTooManyRequests, "rate_limited", "too many scan requests, please slow down")
			return
		}
		c.Next()
	}
}
