package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"postengine/internal/telemetry"

	"golang.org/x/time/rate"
)

const (
	cleanupFrequency = 1 * time.Minute
	inactiveLimit    = 3 * time.Minute
)

var ErrInvalidIP = errors.New("invalid IP")

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter hands every client address its own token bucket
type IPRateLimiter struct {
	ips          map[string]*client
	mu           sync.Mutex
	rate         rate.Limit
	burst        int
	trustedProxy bool
	metrics      *telemetry.Metrics
}

// NewIPRateLimiter allows rps requests per second per client with bursts up to burst.
// Idle clients are forgotten in the background until ctx is cancelled.
func NewIPRateLimiter(ctx context.Context, rps, burst int, trustedProxy bool, metrics *telemetry.Metrics) *IPRateLimiter {
	l := &IPRateLimiter{
		ips:          make(map[string]*client),
		rate:         rate.Limit(rps),
		burst:        burst,
		trustedProxy: trustedProxy,
		metrics:      metrics,
	}

	go l.backgroundCleanup(ctx)
	return l
}

func (i *IPRateLimiter) backgroundCleanup(ctx context.Context) {
	ticker := time.NewTicker(cleanupFrequency)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			i.cleanup()
		}
	}
}

func (i *IPRateLimiter) cleanup() {
	i.mu.Lock()
	defer i.mu.Unlock()

	for ip, c := range i.ips {
		if time.Since(c.lastSeen) > inactiveLimit {
			delete(i.ips, ip)
		}
	}
}

func (i *IPRateLimiter) getLimiter(ip string) (*rate.Limiter, error) {
	if ip == "" {
		return nil, ErrInvalidIP
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	c, ok := i.ips[ip]
	if !ok {
		c = &client{limiter: rate.NewLimiter(i.rate, i.burst)}
		i.ips[ip] = c
	}
	c.lastSeen = time.Now()
	return c.limiter, nil
}

// Len returns the number of tracked clients
func (i *IPRateLimiter) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.ips)
}

func (i *IPRateLimiter) Middleware(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r, i.trustedProxy)

			limiter, err := i.getLimiter(ip)
			if err != nil {
				LoggerFrom(r.Context(), logger).Warn("rejecting request without a client address", "remote", r.RemoteAddr)
				http.Error(w, "invalid ip address", http.StatusBadRequest)
				return
			}

			if !limiter.Allow() {
				// peek at when the next token is available without consuming it
				reservation := limiter.Reserve()
				delay := reservation.Delay()
				reservation.Cancel()

				retrySeconds := max(1, int(delay.Seconds()))

				i.metrics.RateLimitHitsTotal.Add(r.Context(), 1)

				w.Header().Set("Retry-After", strconv.Itoa(retrySeconds))
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(i.burst))
				w.Header().Set("X-RateLimit-Remaining", "0")

				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(i.burst))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))
			next.ServeHTTP(w, r)
		})
	}
}
