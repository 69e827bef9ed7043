// internal/edge/ratelimit.go
package edge

import (
	"net/http"
	"strconv"
	"sync"

	"golang.org/x/time/rate"
)

// KeyFunc picks the bucket a request is charged to.
type KeyFunc func(r *http.Request) string

// AnonymousKey charges every request to one shared bucket.
func AnonymousKey(*http.Request) string {
	return "anonymous"
}

// RateLimiter is a token bucket per key.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	key      KeyFunc
}

func NewRateLimiter(perSecond float64, burst int, key KeyFunc) *RateLimiter {
	return &RateLimiter{
		limiters: map[string]*rate.Limiter{},
		rate:     rate.Limit(perSecond),
		burst:    burst,
		key:      key,
	}
}

func (l *RateLimiter) limiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.rate, l.burst)
		l.limiters[key] = lim
	}
	return lim
}

// Middleware rejects requests with 429 once the bucket is empty.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lim := l.limiter(l.key(r))
		allowed := lim.Allow()

		h := w.Header()
		h.Set("X-RateLimit-Replenish-Rate", strconv.FormatFloat(float64(l.rate), 'f', -1, 64))
		h.Set("X-RateLimit-Burst-Capacity", strconv.Itoa(l.burst))
		if !allowed {
			h.Set("X-RateLimit-Remaining", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		h.Set("X-RateLimit-Remaining", strconv.Itoa(max(0, int(lim.Tokens()))))
		next.ServeHTTP(w, r)
	})
}
