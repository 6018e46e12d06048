package mockapi

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultAuthRate  = 5
	defaultAuthBurst = 10

	maxLimiters = 10000
)

// ipLimiter hands out one token bucket per client address.
type ipLimiter struct {
	rate  rate.Limit
	burst int
	now   func() time.Time

	mu       sync.Mutex
	limiters map[string]*limiterEntry
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

func newIPLimiter(r rate.Limit, burst int, now func() time.Time) *ipLimiter {
	return &ipLimiter{
		rate:     r,
		burst:    burst,
		now:      now,
		limiters: make(map[string]*limiterEntry),
	}
}

func (l *ipLimiter) allow(ip string) bool {
	now := l.now()

	l.mu.Lock()
	entry, ok := l.limiters[ip]
	if !ok {
		if len(l.limiters) >= maxLimiters {
			l.evictOldest()
		}
		entry = &limiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastAccess = now
	l.mu.Unlock()

	return entry.limiter.AllowN(now, 1)
}

func (l *ipLimiter) evictOldest() {
	var oldest string
	var oldestAt time.Time
	for ip, e := range l.limiters {
		if oldest == "" || e.lastAccess.Before(oldestAt) {
			oldest, oldestAt = ip, e.lastAccess
		}
	}
	delete(l.limiters, oldest)
}

// middleware answers 429 once a client exhausts its bucket. It expects
// middleware.RealIP to have normalized RemoteAddr.
func (l *ipLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientIP(r)) {
			writeError(w, http.StatusTooManyRequests, "Too many requests, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
