package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"drinkpoint-api/internal/metrics"
	"drinkpoint-api/pkg/apierror"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out one token bucket per client key.
type RateLimiter struct {
	mu       sync.Mutex
	entries  map[string]*clientLimiter
	rate     rate.Limit
	burst    int
	lifetime time.Duration
	now      func() time.Time
}

// NewRateLimiter returns nil when rps or burst is not positive; a nil limiter allows everything.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	return &RateLimiter{
		entries:  make(map[string]*clientLimiter),
		rate:     rate.Limit(rps),
		burst:    burst,
		lifetime: 5 * time.Minute,
		now:      time.Now,
	}
}

// Allow reports whether the client identified by key may proceed.
func (l *RateLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok {
		entry = &clientLimiter{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.entries[key] = entry
	}
	entry.lastSeen = now
	allowed := entry.limiter.AllowN(now, 1)

	if len(l.entries) > 1024 {
		l.cleanup(now)
	}
	return allowed
}

func (l *RateLimiter) cleanup(now time.Time) {
	expireBefore := now.Add(-l.lifetime)
	for key, entry := range l.entries {
		if entry.lastSeen.Before(expireBefore) {
			delete(l.entries, key)
		}
	}
}

// NewRateLimit limits requests per authenticated user, falling back to the client IP.
func NewRateLimit(l *RateLimiter, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + ClientIP(r)
			if u := GetUser(r.Context()); u != nil {
				key = "user:" + u.ID
			}
			if !l.Allow(key) {
				m.IncRateLimited()
				w.Header().Set("Retry-After", "1")
				writeError(w, apierror.TooManyRequests("Too many requests, slow down"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the host of the remote address. Forwarded headers are ignored here;
// behind a trusted proxy the router rewrites RemoteAddr first.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
