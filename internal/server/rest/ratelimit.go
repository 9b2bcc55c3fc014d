package rest

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const rateLimitClients = 1 << 16

type window struct {
	start time.Time
	count int
}

// RateLimiter is a fixed-window request counter keyed by client address.
// Windows of idle clients expire with the LRU.
type RateLimiter struct {
	mu      sync.Mutex
	max     int
	period  time.Duration
	now     func() time.Time
	windows *expirable.LRU[string, *window]
}

// NewRateLimiter allows max requests per client in each period. A
// non-positive max disables limiting.
func NewRateLimiter(max int, period time.Duration) *RateLimiter {
	if period <= 0 {
		period = time.Minute
	}
	return &RateLimiter{
		max:     max,
		period:  period,
		now:     time.Now,
		windows: expirable.NewLRU[string, *window](rateLimitClients, nil, period),
	}
}

// Allow counts one request for key and reports whether it is within the
// limit, how many remain and when the window resets.
func (l *RateLimiter) Allow(key string) (bool, int, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows.Get(key)
	if !ok || now.Sub(w.start) >= l.period {
		w = &window{start: now}
		l.windows.Add(key, w)
	}
	w.count++

	reset := w.start.Add(l.period)
	remaining := l.max - w.count
	if remaining < 0 {
		remaining = 0
	}
	return w.count <= l.max, remaining, reset
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit rejects clients over the limit with 429.
func RateLimit(l *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil || l.max <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, remaining, reset := l.Allow(clientKey(r))

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.max))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

			if !ok {
				retry := int(time.Until(reset).Seconds()) + 1
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				writeFail(w, http.StatusTooManyRequests, "Too many requests from this IP, please try again later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
