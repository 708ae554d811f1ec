package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type ipLimiter struct {
	limiter *rate.Limiter
	expires time.Time
}

// RateLimit applies a per-IP token bucket allowing perMinute requests per
// minute. Used on the credential endpoints to slow brute forcing.
func RateLimit(perMinute int) gin.HandlerFunc {
	if perMinute < 1 {
		perMinute = 1
	}
	limit := rate.Every(time.Minute / time.Duration(perMinute))
	burst := perMinute/2 + 1

	var (
		mu       sync.Mutex
		limiters = map[string]*ipLimiter{}
	)

	return func(c *gin.Context) {
		ip := c.ClientIP()

		mu.Lock()
		now := time.Now()
		for key, l := range limiters {
			if now.After(l.expires) {
				delete(limiters, key)
			}
		}
		l, ok := limiters[ip]
		if !ok {
			l = &ipLimiter{limiter: rate.NewLimiter(limit, burst)}
			limiters[ip] = l
		}
		l.expires = now.Add(5 * time.Minute)
		allowed := l.limiter.Allow()
		mu.Unlock()

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		c.Next()
	}
}
