package server

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiterConfig holds configuration for rate limiting.
type RateLimiterConfig struct {
	// RequestsPerMin is the steady per-client rate.
	RequestsPerMin int
	// Burst is how many requests a client may make back to back. Zero
	// means RequestsPerMin.
	Burst int
	// IdleTTL is how long a client's bucket survives without requests.
	IdleTTL time.Duration
	// CleanupInterval is how often idle buckets are purged.
	CleanupInterval time.Duration
}

// DefaultRateLimiterConfig returns sensible defaults.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerMin:  120,
		IdleTTL:         10 * time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// RateLimiter hands out per-client tokens that refill continuously at
// RequestsPerMin.
type RateLimiter struct {
	rate  float64 // tokens per second
	burst float64
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	stop chan struct{}
	once sync.Once
}

// NewRateLimiter creates a RateLimiter and starts the goroutine purging idle
// buckets. Call Stop to end it.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	rl := newRateLimiter(cfg, time.Now)
	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go rl.cleanup(interval)
	return rl
}

func newRateLimiter(cfg RateLimiterConfig, now func() time.Time) *RateLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.RequestsPerMin
	}
	ttl := cfg.IdleTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RateLimiter{
		rate:    float64(cfg.RequestsPerMin) / 60,
		burst:   float64(burst),
		ttl:     ttl,
		now:     now,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

// sweep drops buckets idle for longer than the TTL. A dropped client starts
// again with a full burst, which is what its bucket would hold by then.
func (rl *RateLimiter) sweep() int {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	n := 0
	for key, b := range rl.buckets {
		if now.Sub(b.seen) > rl.ttl {
			delete(rl.buckets, key)
			n++
		}
	}
	return n
}

// Take spends one token for client. When none is left it reports how long
// until the next one accrues.
func (rl *RateLimiter) Take(client string) (bool, time.Duration) {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[client]
	if !ok {
		b = &bucket{tokens: rl.burst, seen: now}
		rl.buckets[client] = b
	}
	if elapsed := now.Sub(b.seen).Seconds(); elapsed > 0 {
		b.tokens = math.Min(rl.burst, b.tokens+elapsed*rl.rate)
	}
	b.seen = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	if rl.rate <= 0 {
		return false, time.Minute
	}
	wait := time.Duration((1 - b.tokens) / rl.rate * float64(time.Second))
	return false, wait
}

// rateLimit rejects clients over their budget with an RDAP 429 carrying a
// Retry-After in whole seconds.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := s.rl.Take(clientAddr(r))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
			writeError(w, http.StatusTooManyRequests, "Too many requests from this address, slow down.", s.notices(r)...)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	return max(secs, 1)
}

// clientAddr identifies the client, preferring the leftmost X-Forwarded-For
// entry set by a reverse proxy.
func clientAddr(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		client, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(client)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
