package api

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"playviz/internal/metrics"
)

// RateLimitConfig configures per-client request limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	CleanupInterval   time.Duration // Idle clients are forgotten after twice this
}

// DefaultRateLimitConfig suits a single viewer clicking through a play.
// Frame polling at 30 FPS needs the burst.
var DefaultRateLimitConfig = RateLimitConfig{
	RequestsPerSecond: 20,
	Burst:             40,
	CleanupInterval:   5 * time.Minute,
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// IPRateLimiter keeps one token bucket per client address.
type IPRateLimiter struct {
	clients  sync.Map // map[string]*clientLimiter
	config   RateLimitConfig
	stop     chan struct{}
	stopOnce sync.Once

	allowed  atomic.Uint64
	rejected atomic.Uint64
}

// NewIPRateLimiter creates a limiter and starts its idle-client sweeper.
func NewIPRateLimiter(cfg RateLimitConfig) *IPRateLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultRateLimitConfig.CleanupInterval
	}
	rl := &IPRateLimiter{config: cfg, stop: make(chan struct{})}
	go rl.sweep()
	return rl
}

// Stop ends the sweeper. Safe to call more than once.
func (rl *IPRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *IPRateLimiter) limiterFor(ip string) *rate.Limiter {
	now := time.Now().UnixNano()
	if v, ok := rl.clients.Load(ip); ok {
		c := v.(*clientLimiter)
		c.lastSeen.Store(now)
		return c.limiter
	}

	c := &clientLimiter{limiter: rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.Burst)}
	c.lastSeen.Store(now)
	actual, _ := rl.clients.LoadOrStore(ip, c)
	return actual.(*clientLimiter).limiter
}

func (rl *IPRateLimiter) sweep() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-2 * rl.config.CleanupInterval).UnixNano()
			rl.clients.Range(func(key, value any) bool {
				if value.(*clientLimiter).lastSeen.Load() < cutoff {
					rl.clients.Delete(key)
				}
				return true
			})
		}
	}
}

// Allow reports whether ip may make another request now.
func (rl *IPRateLimiter) Allow(ip string) bool {
	if rl.limiterFor(ip).Allow() {
		rl.allowed.Add(1)
		return true
	}
	rl.rejected.Add(1)
	return false
}

// Middleware rejects over-limit clients with 429.
func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(GetClientIP(r)) {
			metrics.RecordConnectionRejected("rate_limit")
			w.Header().Set("Retry-After", "1")
			writeError(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetStats returns allowed and rejected counts.
func (rl *IPRateLimiter) GetStats() map[string]uint64 {
	return map[string]uint64{
		"allowed":  rl.allowed.Load(),
		"rejected": rl.rejected.Load(),
	}
}

// GetClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// peer address. Forwarded headers are only trustworthy behind a proxy.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// connLimiter caps concurrent viewer sockets per address.
type connLimiter struct {
	mu       sync.Mutex
	counts   map[string]int
	maxPerIP int
}

func newConnLimiter(maxPerIP int) *connLimiter {
	return &connLimiter{counts: make(map[string]int), maxPerIP: maxPerIP}
}

func (l *connLimiter) acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts[ip] >= l.maxPerIP {
		return false
	}
	l.counts[ip]++
	return true
}

func (l *connLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts[ip] <= 1 {
		delete(l.counts, ip)
		return
	}
	l.counts[ip]--
}

// DefaultAllowedOrigins are the dev origins a viewer page is served from.
var DefaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"http://127.0.0.1:3000",
}

// OriginChecker matches request origins against an allow list. Any port on
// localhost or 127.0.0.1 is accepted; "*" accepts everything.
type OriginChecker struct {
	allowed map[string]bool
	any     bool
}

// NewOriginChecker builds a checker. A nil list uses DefaultAllowedOrigins.
func NewOriginChecker(origins []string) *OriginChecker {
	if origins == nil {
		origins = DefaultAllowedOrigins
	}
	c := &OriginChecker{allowed: make(map[string]bool, len(origins))}
	for _, o := range origins {
		if o == "*" {
			c.any = true
		}
		c.allowed[strings.TrimRight(o, "/")] = true
	}
	return c
}

// Allowed reports whether origin may connect.
func (c *OriginChecker) Allowed(origin string) bool {
	if origin == "" {
		return false
	}
	if c.any || c.allowed[origin] {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1":
		return u.Scheme == "http" || u.Scheme == "https"
	}
	return false
}
