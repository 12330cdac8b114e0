package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LumiGrid/internal/config"
	"github.com/turtacn/LumiGrid/pkg/errors"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(rate float64, burst int) (*TokenBucketLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := NewTokenBucketLimiter(rate, burst, 0)
	l.now = clock.now
	return l, clock
}

func TestTokenBucketLimiter_BurstThenRefill(t *testing.T) {
	t.Parallel()

	l, clock := newTestLimiter(2, 3)

	for i := 0; i < 3; i++ {
		ok, info := l.Allow("10.0.0.1")
		require.True(t, ok, "request %d", i)
		assert.Equal(t, 3, info.Limit)
		assert.Equal(t, 2-i, info.Remaining)
	}
	ok, info := l.Allow("10.0.0.1")
	assert.False(t, ok)
	assert.Zero(t, info.Remaining)

	clock.advance(500 * time.Millisecond)
	ok, _ = l.Allow("10.0.0.1")
	assert.True(t, ok)
}

func TestTokenBucketLimiter_KeysAreIndependent(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter(1, 1)
	ok, _ := l.Allow("a")
	assert.True(t, ok)
	ok, _ = l.Allow("a")
	assert.False(t, ok)
	ok, _ = l.Allow("b")
	assert.True(t, ok)
	assert.Equal(t, 2, l.BucketCount())
}

func TestTokenBucketLimiter_CleanupEvictsIdleBuckets(t *testing.T) {
	t.Parallel()

	l, clock := newTestLimiter(10, 5)
	l.cleanupInterval = time.Minute
	l.Allow("idle")

	clock.advance(2 * time.Minute)
	l.Allow("fresh")
	l.cleanup()

	assert.Equal(t, 1, l.BucketCount())
	l.Stop()
	l.Stop()
}

func TestRateLimit_Middleware(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter(1, 1)
	cfg := DefaultRateLimitConfig()
	h := RateLimit(l, cfg)(okHandler())

	send := func(path, remote string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, path, nil)
		r.RemoteAddr = remote
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	w := send("/api/v1/fixtures", "192.0.2.7:5000")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

	// Same host, different port shares the bucket.
	w = send("/api/v1/fixtures", "192.0.2.7:6000")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, errors.ErrCodeTooManyRequests.String(), body["code"])

	w = send("/healthz", "192.0.2.7:7000")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitMiddleware_Stop(t *testing.T) {
	t.Parallel()

	m := NewRateLimitMiddleware(DefaultRateLimitConfig())
	m.Stop()
	m.Stop()

	select {
	case <-m.limiter.stopCleanup:
	default:
		t.Fatal("cleanup loop was not stopped")
	}

	r := httptest.NewRequest(http.MethodGet, "/api/v1/fixtures", nil)
	w := httptest.NewRecorder()
	m.Handler(okHandler()).ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestClientIPKeyFunc(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "[2001:db8::1]:443"
	assert.Equal(t, "2001:db8::1", ClientIPKeyFunc(r))

	r.RemoteAddr = "unix-socket"
	assert.Equal(t, "unix-socket", ClientIPKeyFunc(r))
}

func TestRateLimitConfigFrom(t *testing.T) {
	t.Parallel()

	rc := RateLimitConfigFrom(config.RateLimitConfig{Enabled: true, RequestsPerSecond: 50, Burst: 100})
	assert.Equal(t, 50.0, rc.RequestsPerSecond)
	assert.Equal(t, 100, rc.BurstSize)

	rc = RateLimitConfigFrom(config.RateLimitConfig{})
	assert.Equal(t, DefaultRateLimitConfig().BurstSize, rc.BurstSize)
}
