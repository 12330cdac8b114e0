package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func TestCORS_Preflight(t *testing.T) {
	t.Parallel()

	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://grow.example.com"}
	h := CORS(cfg)(okHandler())

	r := httptest.NewRequest(http.MethodOptions, "/api/v1/calculations", nil)
	r.Header.Set("Origin", "https://grow.example.com")
	r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://grow.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
	assert.Empty(t, w.Body.String())
	assert.Contains(t, w.Header().Values("Vary"), "Origin")
}

func TestCORS_Origins(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		allowed     []string
		credentials bool
		origin      string
		wantOrigin  string
	}{
		{"exact match", []string{"https://grow.example.com"}, false, "https://grow.example.com", "https://grow.example.com"},
		{"case insensitive", []string{"https://Grow.Example.com"}, false, "https://grow.example.com", "https://grow.example.com"},
		{"disallowed", []string{"https://grow.example.com"}, false, "https://evil.test", ""},
		{"any origin", []string{"*"}, false, "https://anything.test", "*"},
		{"any origin with credentials echoes", []string{"*"}, true, "https://anything.test", "https://anything.test"},
		{"subdomain wildcard", []string{"*.example.com"}, false, "https://lab.example.com", "https://lab.example.com"},
		{"no origin header", []string{"*"}, false, "", ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultCORSConfig()
			cfg.AllowedOrigins = tt.allowed
			cfg.AllowCredentials = tt.credentials
			h := CORS(cfg)(okHandler())

			r := httptest.NewRequest(http.MethodGet, "/api/v1/fixtures", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			if tt.wantOrigin != "" {
				assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "X-RateLimit-Remaining")
			}
			if tt.credentials {
				assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
			}
		})
	}
}

func TestCORS_PlainOptionsPassesThrough(t *testing.T) {
	t.Parallel()

	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"*"}
	h := CORS(cfg)(okHandler())

	r := httptest.NewRequest(http.MethodOptions, "/api/v1/fixtures", nil)
	r.Header.Set("Origin", "https://grow.example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewCORSMiddleware(t *testing.T) {
	t.Parallel()

	assert.Nil(t, NewCORSMiddleware(nil))

	m := NewCORSMiddleware([]string{"https://grow.example.com"})
	require.NotNil(t, m)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Origin", "https://grow.example.com")
	w := httptest.NewRecorder()
	m.Handler(okHandler()).ServeHTTP(w, r)
	assert.Equal(t, "https://grow.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
