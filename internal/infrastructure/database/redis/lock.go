package redis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LumiGrid/pkg/errors"
)

var (
	ErrLockNotAcquired = errors.New(errors.ErrCodeConflict, "lock held by another owner")
	ErrLockNotHeld     = errors.New(errors.ErrCodeConflict, "lock not held by this owner")
)

// Locker is a lease-based mutual exclusion primitive. Only the owner that
// acquired it can release or extend it.
type Locker interface {
	Lock(ctx context.Context) error
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
	Extend(ctx context.Context, ttl time.Duration) (bool, error)
	TTL(ctx context.Context) (time.Duration, error)
}

type LockOption func(*lockConfig)

func WithLockTTL(ttl time.Duration) LockOption {
	return func(c *lockConfig) { c.ttl = ttl }
}

func WithRetry(count int, delay time.Duration) LockOption {
	return func(c *lockConfig) { c.retryCount, c.retryDelay = count, delay }
}

// WithWatchdog keeps the lease alive while held by extending it every
// ttl/3 until Unlock.
func WithWatchdog() LockOption {
	return func(c *lockConfig) { c.watchdog = true }
}

type lockConfig struct {
	ttl        time.Duration
	retryDelay time.Duration
	retryCount int
	watchdog   bool
}

// LockFactory mints named locks under "<prefix>lock:<name>".
type LockFactory struct {
	client *Client
	logger logging.Logger
}

func NewLockFactory(client *Client, log logging.Logger) *LockFactory {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &LockFactory{client: client, logger: log}
}

// ForRun returns the lock guarding a single calculation run.
func (f *LockFactory) ForRun(runID string, opts ...LockOption) Locker {
	return f.NewMutex("run:"+runID, opts...)
}

func (f *LockFactory) NewMutex(name string, opts ...LockOption) Locker {
	cfg := lockConfig{ttl: 30 * time.Second, retryDelay: 100 * time.Millisecond, retryCount: 30}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &mutex{
		client: f.client,
		key:    f.client.Key("lock", name),
		token:  uuid.NewString(),
		cfg:    cfg,
		logger: f.logger.With(logging.String("lock", name)),
	}
}

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

type mutex struct {
	client *Client
	key    string
	token  string
	cfg    lockConfig
	logger logging.Logger

	mu      sync.Mutex
	stopDog context.CancelFunc
	dogDone chan struct{}
}

func (m *mutex) Lock(ctx context.Context) error {
	attempts := m.cfg.retryCount
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		ok, err := m.TryLock(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.cfg.retryDelay):
		}
	}
	return ErrLockNotAcquired
}

func (m *mutex) TryLock(ctx context.Context) (bool, error) {
	rdb, err := m.client.Raw()
	if err != nil {
		return false, err
	}
	ok, err := rdb.SetNX(ctx, m.key, m.token, m.cfg.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "lock acquire failed")
	}
	if ok && m.cfg.watchdog {
		m.startWatchdog()
	}
	return ok, nil
}

func (m *mutex) Unlock(ctx context.Context) error {
	m.stopWatchdog()
	rdb, err := m.client.Raw()
	if err != nil {
		return err
	}
	n, err := unlockScript.Run(ctx, rdb, []string{m.key}, m.token).Int64()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "lock release failed")
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

func (m *mutex) Extend(ctx context.Context, ttl time.Duration) (bool, error) {
	rdb, err := m.client.Raw()
	if err != nil {
		return false, err
	}
	n, err := extendScript.Run(ctx, rdb, []string{m.key}, m.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (m *mutex) TTL(ctx context.Context) (time.Duration, error) {
	rdb, err := m.client.Raw()
	if err != nil {
		return 0, err
	}
	return rdb.PTTL(ctx, m.key).Result()
}

func (m *mutex) startWatchdog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopDog != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.stopDog = cancel
	m.dogDone = make(chan struct{})
	go m.watch(ctx, m.dogDone)
}

func (m *mutex) stopWatchdog() {
	m.mu.Lock()
	cancel, done := m.stopDog, m.dogDone
	m.stopDog, m.dogDone = nil, nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (m *mutex) watch(ctx context.Context, done chan struct{}) {
	defer close(done)
	interval := m.cfg.ttl / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := m.Extend(ctx, m.cfg.ttl)
			if err != nil {
				if ctx.Err() == nil {
					m.logger.Error("lock watchdog extend failed", logging.Err(err))
				}
				return
			}
			if !ok {
				m.logger.Warn("lock watchdog lost lease")
				return
			}
		}
	}
}
