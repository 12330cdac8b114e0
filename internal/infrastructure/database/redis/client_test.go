package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LumiGrid/internal/config"
	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LumiGrid/pkg/errors"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewClient(config.RedisConfig{Addr: mr.Addr(), KeyPrefix: "lumigrid:"}, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestNewClient_Success(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t)
	assert.NoError(t, c.Ping(context.Background()))
	assert.NotNil(t, c.PoolStats())
}

func TestNewClient_ConnectionFailed(t *testing.T) {
	t.Parallel()
	c, err := NewClient(config.RedisConfig{Addr: "127.0.0.1:1"}, nil)
	require.Error(t, err)
	assert.Nil(t, c)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCacheError))
}

func TestClient_Key(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t)
	assert.Equal(t, "lumigrid:results:abc", c.Key("results", "abc"))
	assert.Equal(t, "lumigrid:", c.Key())

	bare := NewClientFrom(nil, "", nil)
	assert.Equal(t, "lock:run:1", bare.Key("lock", "run:1"))
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.ErrorIs(t, c.Ping(context.Background()), ErrClientClosed)
	_, err := c.Raw()
	assert.ErrorIs(t, err, ErrClientClosed)
}
