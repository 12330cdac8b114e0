package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/turtacn/LumiGrid/internal/config"
	"github.com/turtacn/LumiGrid/pkg/errors"
)

// RateLimiter decides whether a request keyed by client may proceed.
type RateLimiter interface {
	Allow(key string) (bool, RateLimitInfo)
}

// RateLimitInfo is rendered into the X-RateLimit-* headers.
type RateLimitInfo struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimitConfig configures the RateLimit middleware.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	// KeyFunc defaults to ClientIPKeyFunc.
	KeyFunc         func(r *http.Request) string
	SkipPaths       []string
	CleanupInterval time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 10,
		BurstSize:         20,
		KeyFunc:           ClientIPKeyFunc,
		SkipPaths:         []string{"/healthz", "/readyz", "/metrics"},
		CleanupInterval:   5 * time.Minute,
	}
}

// RateLimitConfigFrom overlays the server's rate limit section on the defaults.
func RateLimitConfigFrom(cfg config.RateLimitConfig) RateLimitConfig {
	rc := DefaultRateLimitConfig()
	if cfg.RequestsPerSecond > 0 {
		rc.RequestsPerSecond = cfg.RequestsPerSecond
	}
	if cfg.Burst > 0 {
		rc.BurstSize = cfg.Burst
	}
	return rc
}

// ClientIPKeyFunc keys by remote host. Run chi's RealIP first so proxied
// requests carry the forwarded address.
func ClientIPKeyFunc(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
	mu         sync.Mutex
}

// TokenBucketLimiter keeps one bucket per key. Idle full buckets are
// evicted every cleanup interval.
type TokenBucketLimiter struct {
	rate            float64
	burstSize       int
	buckets         map[string]*tokenBucket
	mu              sync.RWMutex
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
	now             func() time.Time
}

func NewTokenBucketLimiter(rate float64, burstSize int, cleanupInterval time.Duration) *TokenBucketLimiter {
	l := &TokenBucketLimiter{
		rate:            rate,
		burstSize:       burstSize,
		buckets:         make(map[string]*tokenBucket),
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
		now:             time.Now,
	}
	if cleanupInterval > 0 {
		go l.cleanupLoop()
	}
	return l
}

func (l *TokenBucketLimiter) Allow(key string) (bool, RateLimitInfo) {
	now := l.now()

	l.mu.RLock()
	bucket, exists := l.buckets[key]
	l.mu.RUnlock()

	if !exists {
		l.mu.Lock()
		bucket, exists = l.buckets[key]
		if !exists {
			bucket = &tokenBucket{tokens: float64(l.burstSize), lastRefill: now}
			l.buckets[key] = bucket
		}
		l.mu.Unlock()
	}

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	elapsed := now.Sub(bucket.lastRefill).Seconds()
	bucket.tokens += elapsed * l.rate
	if bucket.tokens > float64(l.burstSize) {
		bucket.tokens = float64(l.burstSize)
	}
	bucket.lastRefill = now

	info := RateLimitInfo{
		Limit:   l.burstSize,
		ResetAt: now.Add(time.Duration(float64(time.Second) / l.rate)),
	}
	if bucket.tokens >= 1.0 {
		bucket.tokens--
		info.Remaining = int(bucket.tokens)
		return true, info
	}
	return false, info
}

func (l *TokenBucketLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCleanup:
			return
		}
	}
}

func (l *TokenBucketLimiter) cleanup() {
	threshold := l.now().Add(-l.cleanupInterval)

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, bucket := range l.buckets {
		bucket.mu.Lock()
		if bucket.lastRefill.Before(threshold) && bucket.tokens >= float64(l.burstSize)-1 {
			delete(l.buckets, key)
		}
		bucket.mu.Unlock()
	}
}

// Stop ends the cleanup goroutine. Safe to call twice.
func (l *TokenBucketLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCleanup) })
}

func (l *TokenBucketLimiter) BucketCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}

// RateLimit rejects requests over the limit with 429 and Retry-After.
func RateLimit(limiter RateLimiter, config RateLimitConfig) func(http.Handler) http.Handler {
	skipSet := make(map[string]bool, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skipSet[p] = true
	}
	keyFunc := config.KeyFunc
	if keyFunc == nil {
		keyFunc = ClientIPKeyFunc
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipSet[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			allowed, info := limiter.Allow(keyFunc(r))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt.Unix(), 10))

			if !allowed {
				retryAfter := time.Until(info.ResetAt).Seconds()
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter)))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"code":    errors.ErrCodeTooManyRequests.String(),
					"message": "rate limit exceeded, please retry later",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitMiddleware owns a TokenBucketLimiter for RouterConfig.
type RateLimitMiddleware struct {
	limiter *TokenBucketLimiter
	handler func(http.Handler) http.Handler
}

func NewRateLimitMiddleware(config RateLimitConfig) *RateLimitMiddleware {
	limiter := NewTokenBucketLimiter(config.RequestsPerSecond, config.BurstSize, config.CleanupInterval)
	return &RateLimitMiddleware{limiter: limiter, handler: RateLimit(limiter, config)}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return m.handler(next)
}

// Stop releases the limiter's cleanup goroutine.
func (m *RateLimitMiddleware) Stop() { m.limiter.Stop() }
