package redis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedStats struct {
	Min     float64 `json:"min"`
	Average float64 `json:"average"`
}

func TestCache_SetGet(t *testing.T) {
	t.Parallel()
	c, mr := newTestClient(t)
	cache := NewCache(c, nil, WithNamespace("results"))
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "h1", cachedStats{Min: 4.6, Average: 12.5}, time.Minute))
	assert.True(t, mr.Exists("lumigrid:results:h1"))

	var got cachedStats
	require.NoError(t, cache.Get(ctx, "h1", &got))
	assert.Equal(t, cachedStats{Min: 4.6, Average: 12.5}, got)

	ttl := mr.TTL("lumigrid:results:h1")
	assert.InDelta(t, time.Minute.Seconds(), ttl.Seconds(), 6.5)
}

func TestCache_MissAndObserver(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t)
	var hits, misses int
	cache := NewCache(c, nil, WithHitObserver(func(hit bool) {
		if hit {
			hits++
		} else {
			misses++
		}
	}))
	ctx := context.Background()

	var got cachedStats
	assert.ErrorIs(t, cache.Get(ctx, "absent", &got), ErrCacheMiss)
	require.NoError(t, cache.Set(ctx, "present", cachedStats{}, 0))
	require.NoError(t, cache.Get(ctx, "present", &got))

	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
}

func TestCache_DeleteAndExists(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t)
	cache := NewCache(c, nil)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", 1, time.Minute))
	ok, err := cache.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, cache.Delete(ctx, "k"))
	require.NoError(t, cache.Delete(ctx))
	ok, err = cache.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_GetOrLoad_SingleFlight(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t)
	cache := NewCache(c, nil, WithNamespace("results"))
	ctx := context.Background()

	var calls int32
	release := make(chan struct{})
	loader := func(context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return cachedStats{Min: 1, Average: 2}, nil
	}

	var wg sync.WaitGroup
	results := make([]cachedStats, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, cache.GetOrLoad(ctx, "shared", &results[i], time.Minute, loader))
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(2))
	for _, r := range results {
		assert.Equal(t, cachedStats{Min: 1, Average: 2}, r)
	}

	var again cachedStats
	require.NoError(t, cache.GetOrLoad(ctx, "shared", &again, time.Minute, func(context.Context) (interface{}, error) {
		t.Fatal("loader must not run on a hit")
		return nil, nil
	}))
	assert.Equal(t, 2.0, again.Average)
}

func TestCache_GetOrLoad_NilIsNegativelyCached(t *testing.T) {
	t.Parallel()
	c, mr := newTestClient(t)
	cache := NewCache(c, nil, WithNullTTL(time.Second))
	ctx := context.Background()

	var got cachedStats
	err := cache.GetOrLoad(ctx, "nothing", &got, time.Minute, func(context.Context) (interface{}, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.True(t, mr.Exists("lumigrid:nothing"))
	assert.ErrorIs(t, cache.Get(ctx, "nothing", &got), ErrCacheMiss)

	err = cache.GetOrLoad(ctx, "nothing", &got, time.Minute, func(context.Context) (interface{}, error) {
		t.Fatal("loader must not run while a negative entry is live")
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCache_GetOrLoad_LoaderError(t *testing.T) {
	t.Parallel()
	c, mr := newTestClient(t)
	cache := NewCache(c, nil)
	boom := errors.New("boom")

	var got cachedStats
	err := cache.GetOrLoad(context.Background(), "k", &got, 0, func(context.Context) (interface{}, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("lumigrid:k"))
}

func TestCache_DeleteByPrefix(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t)
	cache := NewCache(c, nil, WithNamespace("models"))
	ctx := context.Background()

	for _, k := range []string{"acme-1", "acme-2", "other-1"} {
		require.NoError(t, cache.Set(ctx, k, k, time.Minute))
	}
	n, err := cache.DeleteByPrefix(ctx, "acme-")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ok, _ := cache.Exists(ctx, "other-1")
	assert.True(t, ok)
}

func TestCache_ClosedClient(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t)
	cache := NewCache(c, nil)
	require.NoError(t, c.Close())

	assert.ErrorIs(t, cache.Set(context.Background(), "k", 1, 0), ErrClientClosed)
	assert.ErrorIs(t, cache.Ping(context.Background()), ErrClientClosed)
}

func TestJitter(t *testing.T) {
	t.Parallel()
	assert.Zero(t, jitter(0))
	for i := 0; i < 100; i++ {
		got := jitter(time.Minute)
		assert.GreaterOrEqual(t, got, 54*time.Second)
		assert.LessOrEqual(t, got, 66*time.Second)
	}
}
