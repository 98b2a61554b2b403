package httpmiddleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// RateLimitConfig configures a fixed window rate limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per key and window.
	Max int
	// Window is the window length. A window starts at the first request of a key.
	Window time.Duration
	// KeyFunc extracts the rate limit key. ClientIP is used when nil.
	KeyFunc func(*http.Request) string
}

type rateLimiter struct {
	cfg      RateLimitConfig
	counters *gocache.Cache
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	return &rateLimiter{
		cfg:      cfg,
		counters: gocache.New(cfg.Window, cfg.Window),
	}
}

// hit counts one request for key and returns the count within the current
// window together with the window end.
func (rl *rateLimiter) hit(key string) (int, time.Time) {
	for {
		if err := rl.counters.Add(key, 1, rl.cfg.Window); err == nil {
			return 1, time.Now().Add(rl.cfg.Window)
		}
		n, err := rl.counters.IncrementInt(key, 1)
		if err != nil {
			// The window expired between Add and IncrementInt.
			continue
		}
		_, resetAt, _ := rl.counters.GetWithExpiration(key)
		return n, resetAt
	}
}

// RateLimit rejects requests above cfg.Max per window with 429. Every
// response carries X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset headers. Expired counters are evicted in the background.
func RateLimit(cfg RateLimitConfig) Middleware {
	rl := newRateLimiter(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count, resetAt := rl.hit(rl.cfg.KeyFunc(r))

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(rl.cfg.Max))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(max(rl.cfg.Max-count, 0)))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

			if count > rl.cfg.Max {
				retryAfter := max(time.Until(resetAt), 0)
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the first X-Forwarded-For address, then X-Real-IP, then
// the host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
