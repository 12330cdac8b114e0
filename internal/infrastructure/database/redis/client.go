// Package redis wraps go-redis with the result cache and run locks used by
// the LumiGrid API and worker.
package redis

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/LumiGrid/internal/config"
	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LumiGrid/pkg/errors"
)

var (
	ErrClientClosed     = errors.New(errors.ErrCodeServiceUnavailable, "redis client is closed")
	ErrConnectionFailed = errors.New(errors.ErrCodeCacheError, "redis connection failed")
)

const pingTimeout = 5 * time.Second

// Client is a closable handle on a go-redis UniversalClient.
type Client struct {
	rdb    redis.UniversalClient
	prefix string
	logger logging.Logger

	mu     sync.RWMutex
	closed bool
}

// NewClient dials cfg.Addr and verifies the connection with PING.
func NewClient(cfg config.RedisConfig, log logging.Logger) (*Client, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	poolSize := cfg.PoolSize
	if poolSize == 0 {
		poolSize = 10 * runtime.GOMAXPROCS(0)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     poolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, ErrConnectionFailed.WithCause(err)
	}

	log.Info("redis connected", logging.String("addr", cfg.Addr), logging.Int("db", cfg.DB))
	return NewClientFrom(rdb, cfg.KeyPrefix, log), nil
}

// NewClientFrom wraps an existing go-redis client without dialing.
func NewClientFrom(rdb redis.UniversalClient, prefix string, log logging.Logger) *Client {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Client{rdb: rdb, prefix: prefix, logger: log.Named("redis")}
}

// Key prepends the configured namespace prefix.
func (c *Client) Key(parts ...string) string {
	n := len(c.prefix)
	for _, p := range parts {
		n += len(p) + 1
	}
	b := make([]byte, 0, n)
	b = append(b, c.prefix...)
	for i, p := range parts {
		if i > 0 {
			b = append(b, ':')
		}
		b = append(b, p...)
	}
	return string(b)
}

func (c *Client) Ping(ctx context.Context) error {
	if c.isClosed() {
		return ErrClientClosed
	}
	return c.rdb.Ping(ctx).Err()
}

// Close is idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.rdb.Close(); err != nil {
		c.logger.Error("redis close failed", logging.Err(err))
		return err
	}
	c.logger.Info("redis client closed")
	return nil
}

// Raw exposes the underlying client, or an error once closed.
func (c *Client) Raw() (redis.UniversalClient, error) {
	if c.isClosed() {
		return nil, ErrClientClosed
	}
	return c.rdb, nil
}

func (c *Client) PoolStats() *redis.PoolStats {
	return c.rdb.PoolStats()
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
