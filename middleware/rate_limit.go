package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/cppla/pointsplay/utils"
)

const limiterIdleTTL = 5 * time.Minute

type rateLimiter struct {
	limiter *rate.Limiter
	expires time.Time
}

// limiterStore holds one token bucket per client key.
type limiterStore struct {
	mu       sync.Mutex
	limiters map[string]*rateLimiter
	limit    rate.Limit
	burst    int
}

func newLimiterStore(perMinute, burst int) *limiterStore {
	perMinute = max(perMinute, 1)
	return &limiterStore{
		limiters: map[string]*rateLimiter{},
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    max(burst, 1),
	}
}

func (s *limiterStore) allow(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, l := range s.limiters {
		if now.After(l.expires) {
			delete(s.limiters, k)
		}
	}
	l, ok := s.limiters[key]
	if !ok {
		l = &rateLimiter{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.limiters[key] = l
	}
	l.expires = now.Add(limiterIdleTTL)
	return l.limiter.AllowN(now, 1)
}

// clientKey identifies the caller: the authenticated user when known, the IP otherwise.
func clientKey(ctx *gin.Context) string {
	if id := CurrentUserID(ctx); id != 0 {
		return fmt.Sprintf("u:%d", id)
	}
	return "ip:" + ctx.ClientIP()
}

// RateLimit applies a token bucket of perMinute requests with the given burst per client.
// Each call creates an independent set of buckets.
func RateLimit(perMinute, burst int) gin.HandlerFunc {
	store := newLimiterStore(perMinute, burst)
	return func(ctx *gin.Context) {
		if !store.allow(clientKey(ctx), time.Now()) {
			utils.Error(ctx, http.StatusTooManyRequests, utils.CodeTooManyRequests, "rate limit exceeded")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

// RateLimitMiddleware is the global limiter sized from RateLimitPerMinute.
func RateLimitMiddleware(perMinute int) gin.HandlerFunc {
	return RateLimit(perMinute, perMinute/2)
}
