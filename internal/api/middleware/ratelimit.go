package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// OwnerLimiter hands out one token bucket per caller identity.
type OwnerLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*ownerBucket
	idleTTL  time.Duration
	lastGC   time.Time
}

type ownerBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewOwnerLimiter allows perSecond requests per owner; zero disables limiting.
func NewOwnerLimiter(perSecond float64, burst int) *OwnerLimiter {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &OwnerLimiter{
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*ownerBucket),
		idleTTL:  10 * time.Minute,
		lastGC:   time.Now(),
	}
}

func (l *OwnerLimiter) Allow(owner string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastGC) > l.idleTTL {
		for k, b := range l.limiters {
			if now.Sub(b.lastSeen) > l.idleTTL {
				delete(l.limiters, k)
			}
		}
		l.lastGC = now
	}

	b, ok := l.limiters[owner]
	if !ok {
		b = &ownerBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[owner] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// RateLimit rejects callers that exceed their bucket with 429. It must run
// after AuthRequired.
func RateLimit(l *OwnerLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.GetString(OwnerKey)) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many check requests"})
			return
		}
		c.Next()
	}
}
