package opensearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LumiGrid/internal/config"
	apperrors "github.com/turtacn/LumiGrid/pkg/errors"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := newClient(config.OpenSearchConfig{Addresses: []string{srv.URL}}, nil)
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresAddresses(t *testing.T) {
	t.Parallel()
	_, err := NewClient(config.OpenSearchConfig{}, nil)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
}

func TestNewClient_PingSucceeds(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"version":{"number":"2.11.0","distribution":"opensearch"}}`))
	}))
	defer srv.Close()

	c, err := NewClient(config.OpenSearchConfig{Addresses: []string{srv.URL}}, nil)
	require.NoError(t, err)
	assert.True(t, c.IsHealthy())
}

func TestPing_ErrorStatus(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	err := c.Ping(context.Background())
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeServiceUnavailable))
	assert.False(t, c.IsHealthy())
}
