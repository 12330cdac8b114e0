package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LumiGrid/pkg/errors"
)

var (
	ErrCacheMiss           = errors.New(errors.ErrCodeNotFound, "cache miss")
	ErrSerializationFailed = errors.New(errors.ErrCodeSerialization, "cache serialization failed")
)

// nullMarker records a loader that found nothing, so repeated misses do not
// reach the backing store.
const nullMarker = "__null__"

// Cache is a JSON value cache keyed under the client prefix.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	// GetOrLoad reads key into dest, calling loader once per key across
	// concurrent callers on a miss. A nil loader result is cached as a
	// short-lived negative entry and reported as ErrCacheMiss.
	GetOrLoad(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)
	Ping(ctx context.Context) error
}

// HitObserver is notified of every Get outcome, for metrics.
type HitObserver func(hit bool)

type redisCache struct {
	client     *Client
	logger     logging.Logger
	namespace  string
	defaultTTL time.Duration
	nullTTL    time.Duration
	observe    HitObserver
	group      singleflight.Group
}

type CacheOption func(*redisCache)

// WithNamespace scopes keys below the client prefix, e.g. "results".
func WithNamespace(ns string) CacheOption {
	return func(c *redisCache) { c.namespace = ns }
}

func WithDefaultTTL(ttl time.Duration) CacheOption {
	return func(c *redisCache) { c.defaultTTL = ttl }
}

func WithNullTTL(ttl time.Duration) CacheOption {
	return func(c *redisCache) { c.nullTTL = ttl }
}

func WithHitObserver(fn HitObserver) CacheOption {
	return func(c *redisCache) { c.observe = fn }
}

func NewCache(client *Client, log logging.Logger, opts ...CacheOption) Cache {
	if log == nil {
		log = logging.NewNopLogger()
	}
	c := &redisCache{
		client:     client,
		logger:     log,
		defaultTTL: 15 * time.Minute,
		nullTTL:    30 * time.Second,
		observe:    func(bool) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *redisCache) key(k string) string {
	if c.namespace == "" {
		return c.client.Key(k)
	}
	return c.client.Key(c.namespace, k)
}

// jitter spreads expiries by up to ±10% so entries written together do not
// expire together.
func jitter(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return ttl + time.Duration(float64(ttl)*0.1*(rand.Float64()*2-1))
}

func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	_, err := c.get(ctx, key, dest)
	return err
}

// get also reports whether the key holds a negative entry.
func (c *redisCache) get(ctx context.Context, key string, dest interface{}) (negative bool, err error) {
	rdb, err := c.client.Raw()
	if err != nil {
		return false, err
	}
	data, err := rdb.Get(ctx, c.key(key)).Bytes()
	if err == redis.Nil {
		c.observe(false)
		return false, ErrCacheMiss
	}
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "cache read failed")
	}
	if string(data) == nullMarker {
		c.observe(false)
		return true, ErrCacheMiss
	}
	c.observe(true)
	if err := json.Unmarshal(data, dest); err != nil {
		return false, ErrSerializationFailed.WithCause(err)
	}
	return false, nil
}

func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	rdb, err := c.client.Raw()
	if err != nil {
		return err
	}
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	data, err := json.Marshal(value)
	if err != nil {
		return ErrSerializationFailed.WithCause(err)
	}
	if err := rdb.Set(ctx, c.key(key), data, jitter(ttl)).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "cache write failed")
	}
	return nil
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	rdb, err := c.client.Raw()
	if err != nil {
		return err
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	return rdb.Del(ctx, full...).Err()
}

func (c *redisCache) Exists(ctx context.Context, key string) (bool, error) {
	rdb, err := c.client.Raw()
	if err != nil {
		return false, err
	}
	n, err := rdb.Exists(ctx, c.key(key)).Result()
	return n > 0, err
}

func (c *redisCache) GetOrLoad(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error {
	negative, err := c.get(ctx, key, dest)
	if negative || err != ErrCacheMiss {
		return err
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		loaded, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		if loaded == nil {
			if rdb, rerr := c.client.Raw(); rerr == nil {
				rdb.Set(ctx, c.key(key), nullMarker, c.nullTTL)
			}
			return nil, nil
		}
		data, err := json.Marshal(loaded)
		if err != nil {
			return nil, ErrSerializationFailed.WithCause(err)
		}
		if err := c.Set(ctx, key, json.RawMessage(data), ttl); err != nil {
			c.logger.Warn("cache fill failed", logging.String("key", key), logging.Err(err))
		}
		return data, nil
	})
	if err != nil {
		return err
	}
	if v == nil {
		return ErrCacheMiss
	}
	if err := json.Unmarshal(v.([]byte), dest); err != nil {
		return ErrSerializationFailed.WithCause(err)
	}
	return nil
}

func (c *redisCache) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	rdb, err := c.client.Raw()
	if err != nil {
		return 0, err
	}
	var deleted int64
	iter := rdb.Scan(ctx, 0, c.key(prefix)+"*", 100).Iterator()
	batch := make([]string, 0, 100)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := rdb.Del(ctx, batch...).Result()
		deleted += n
		batch = batch[:0]
		return err
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, err
	}
	return deleted, flush()
}

func (c *redisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx)
}
