package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Limiter allows each client a fixed number of requests per window.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*window
	limit   int
	period  time.Duration
	now     func() time.Time

	rejected int64
}

type window struct {
	start    time.Time
	requests int
}

// NewLimiter allows limit requests per client and period. A limit below 1
// disables limiting.
func NewLimiter(limit int, period time.Duration) *Limiter {
	if period <= 0 {
		period = time.Minute
	}
	return &Limiter{
		clients: make(map[string]*window),
		limit:   limit,
		period:  period,
		now:     time.Now,
	}
}

// Allow records a request of client and reports whether it is within the limit.
func (l *Limiter) Allow(client string) bool {
	if l.limit < 1 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.clients[client]
	if !ok || now.Sub(w.start) >= l.period {
		l.clients[client] = &window{start: now, requests: 1}
		return true
	}
	w.requests++
	if w.requests > l.limit {
		atomic.AddInt64(&l.rejected, 1)
		return false
	}
	return true
}

// CleanExpired forgets clients whose window has passed. It lets the cache
// manager sweep the limiter on its cleanup schedule.
func (l *Limiter) CleanExpired() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for client, w := range l.clients {
		if now.Sub(w.start) >= l.period {
			delete(l.clients, client)
			removed++
		}
	}
	return removed
}

// ActiveClients returns the number of currently tracked clients
func (l *Limiter) ActiveClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Rejected returns how many requests were turned away.
func (l *Limiter) Rejected() int64 {
	return atomic.LoadInt64(&l.rejected)
}

// Middleware rejects requests over the limit with 429. clientOf identifies
// the caller and onLimit, when set, writes the rejection.
func (l *Limiter) Middleware(clientOf func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(clientOf(r)) {
				w.Header().Set("Retry-After", strconv.Itoa(int(l.period.Seconds())))
				if onLimit != nil {
					onLimit(w, r)
					return
				}
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
