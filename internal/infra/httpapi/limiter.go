package httpapi

import (
	"net"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"harness/internal/metrics"
)

// rateLimiter applies a global token bucket and one bucket per client address.
type rateLimiter struct {
	global   *rate.Limiter
	perIP    sync.Map
	ipRate   rate.Limit
	ipBurst  int
	disabled bool
}

func newRateLimiter(rps float64, burst int) *rateLimiter {
	if rps <= 0 {
		return &rateLimiter{disabled: true}
	}
	if burst <= 0 {
		burst = int(rps)*2 + 1
	}
	return &rateLimiter{
		global:  rate.NewLimiter(rate.Limit(rps*4), burst*4),
		ipRate:  rate.Limit(rps),
		ipBurst: burst,
	}
}

func (rl *rateLimiter) limiterFor(ip string) *rate.Limiter {
	if l, ok := rl.perIP.Load(ip); ok {
		return l.(*rate.Limiter)
	}
	l, _ := rl.perIP.LoadOrStore(ip, rate.NewLimiter(rl.ipRate, rl.ipBurst))
	return l.(*rate.Limiter)
}

func (rl *rateLimiter) allow(ip string) bool {
	if rl.disabled {
		return true
	}
	if !rl.global.Allow() || !rl.limiterFor(ip).Allow() {
		metrics.RateLimitHits.Inc()
		return false
	}
	return true
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientIP(r)) {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
