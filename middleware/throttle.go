package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ThrottleConfig sizes the per-client token bucket.
type ThrottleConfig struct {
	// Rate is the sustained number of requests per second per client.
	Rate float64
	// Burst is the bucket size.
	Burst int
	// IdleTTL is how long an unused client bucket is kept.
	IdleTTL time.Duration
	// TrustProxy selects the client IP the same way ClientMetadata does.
	TrustProxy bool
}

type throttleClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Throttle limits requests per client IP. It is independent of account lockout and
// protects the password hasher from request floods.
type Throttle struct {
	cfg ThrottleConfig
	now func() time.Time

	mu      sync.Mutex
	clients map[string]*throttleClient
}

// NewThrottle returns a Throttle. Zero fields fall back to 5 req/s, burst 10 and a 10
// minute idle TTL.
func NewThrottle(cfg ThrottleConfig) *Throttle {
	if cfg.Rate <= 0 {
		cfg.Rate = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	return &Throttle{
		cfg:     cfg,
		now:     time.Now,
		clients: make(map[string]*throttleClient),
	}
}

// Allow reports whether one more request from key fits in its bucket. When it does not,
// it also returns how long the client should wait.
func (t *Throttle) Allow(key string) (bool, time.Duration) {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.clients[key]
	if !ok {
		c = &throttleClient{limiter: rate.NewLimiter(rate.Limit(t.cfg.Rate), t.cfg.Burst)}
		t.clients[key] = c
	}
	c.lastSeen = now

	r := c.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Sweep drops buckets idle for longer than IdleTTL and returns how many were removed.
func (t *Throttle) Sweep() int {
	cutoff := t.now().Add(-t.cfg.IdleTTL)

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for key, c := range t.clients {
		if c.lastSeen.Before(cutoff) {
			delete(t.clients, key)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (t *Throttle) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

// Middleware rejects over-limit requests with 429 and a Retry-After header.
func (t *Throttle) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := t.Allow(ClientIP(r, t.cfg.TrustProxy))
		if !ok {
			secs := int(math.Ceil(wait.Seconds()))
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			writeJSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
