package httpx

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter is an in-process token bucket per client address: limit
// requests per window with a burst of limit.
type RateLimiter struct {
	limit    int
	window   time.Duration
	now      func() time.Time
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	swept    time.Time
}

type clientLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		limit:    limit,
		window:   window,
		now:      time.Now,
		limiters: map[string]*clientLimiter{},
	}
}

func (rl *RateLimiter) Middleware() Middleware {
	if rl == nil || rl.limit <= 0 {
		return nil
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.allow(clientKey(r)) {
				tooMany(w, rl.window/time.Duration(rl.limit))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) allow(key string) bool {
	now := rl.now()
	return rl.limiter(key, now).AllowN(now, 1)
}

func (rl *RateLimiter) limiter(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	// A client idle for a full window has a full bucket again, so its
	// limiter can be dropped.
	if now.Sub(rl.swept) > rl.window {
		for k, c := range rl.limiters {
			if now.Sub(c.seen) > rl.window {
				delete(rl.limiters, k)
			}
		}
		rl.swept = now
	}

	c := rl.limiters[key]
	if c == nil {
		c = &clientLimiter{lim: rate.NewLimiter(rate.Every(rl.window/time.Duration(rl.limit)), rl.limit)}
		rl.limiters[key] = c
	}
	c.seen = now
	return c.lim
}

func tooMany(w http.ResponseWriter, retry time.Duration) {
	secs := int(retry.Seconds())
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	WriteJSON(w, http.StatusTooManyRequests, map[string]string{
		"error":   "rate_limited",
		"message": "rate limit exceeded",
	})
}

func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
