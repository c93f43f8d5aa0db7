package middleware

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/platinummonkey/provisioner/pkg/httputil"
	"github.com/platinummonkey/provisioner/pkg/observability"
)

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate
	RequestsPerSecond float64
	// Burst is the maximum number of requests allowed at once
	Burst int
	// Window is the fixed window used by the Redis limiter
	Window time.Duration
}

// DefaultRateLimitConfig returns default rate limit settings for the admin route
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 1,
		Burst:             5,
		Window:            time.Minute,
	}
}

// RequestsPerWindow converts the rate to a fixed-window count, never less
// than Burst
func (c RateLimitConfig) RequestsPerWindow() int {
	window := c.Window
	if window <= 0 {
		window = time.Minute
	}
	limit := int(math.Floor(c.RequestsPerSecond * window.Seconds()))
	if limit < c.Burst {
		limit = c.Burst
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}

// Decision is the outcome of a rate limit check
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether the client identified by key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// LocalLimiter keeps one token bucket per client in process memory
type LocalLimiter struct {
	config  RateLimitConfig
	clients sync.Map // map[string]*clientLimiter
	idleTTL time.Duration
}

type clientLimiter struct {
	limiter  *rate.Limiter
	mu       sync.Mutex
	lastSeen time.Time
}

// NewLocalLimiter creates an in-memory limiter
func NewLocalLimiter(config RateLimitConfig) *LocalLimiter {
	if config.Burst < 1 {
		config.Burst = 1
	}
	return &LocalLimiter{config: config, idleTTL: 10 * time.Minute}
}

// Allow implements Limiter
func (l *LocalLimiter) Allow(_ context.Context, key string) (Decision, error) {
	v, _ := l.clients.LoadOrStore(key, &clientLimiter{
		limiter: rate.NewLimiter(rate.Limit(l.config.RequestsPerSecond), l.config.Burst),
	})
	cl := v.(*clientLimiter)

	cl.mu.Lock()
	cl.lastSeen = time.Now()
	cl.mu.Unlock()

	decision := Decision{Limit: l.config.Burst}

	reservation := cl.limiter.Reserve()
	if !reservation.OK() {
		return decision, nil
	}
	if delay := reservation.Delay(); delay > 0 {
		reservation.Cancel()
		decision.RetryAfter = delay
		return decision, nil
	}

	decision.Allowed = true
	decision.Remaining = int(cl.limiter.Tokens())
	if decision.Remaining < 0 {
		decision.Remaining = 0
	}
	return decision, nil
}

// Cleanup removes buckets idle for longer than the idle TTL
func (l *LocalLimiter) Cleanup() {
	cutoff := time.Now().Add(-l.idleTTL)
	l.clients.Range(func(key, value any) bool {
		cl := value.(*clientLimiter)
		cl.mu.Lock()
		stale := cl.lastSeen.Before(cutoff)
		cl.mu.Unlock()
		if stale {
			l.clients.Delete(key)
		}
		return true
	})
}

// StartCleanup runs Cleanup periodically until ctx is done
func (l *LocalLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// RateLimitMiddleware rejects clients over their limit with 429. Limiter
// errors fail open so an unavailable Redis does not take the route down.
func RateLimitMiddleware(limiter Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, err := limiter.Allow(r.Context(), "ip:"+clientIP(r))
			if err != nil {
				observability.FromContext(r.Context()).WithError(err).Warn("rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			if !decision.Allowed {
				retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("X-RateLimit-Remaining", "0")
				httputil.WriteTooManyRequests(w, fmt.Sprintf("rate limit exceeded, retry in %ds", retryAfter))
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP uses RemoteAddr only; forwarding headers are client-controlled
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
