// Package cache implements the Cache command taxonomy (§4.3) for the redis,
// memcached and in-memory service kinds.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/redis/go-redis/v9"

	"github.com/nativegate/gateway/internal/domain"
	"github.com/nativegate/gateway/internal/services"
)

func init() {
	services.Register(domain.ServiceKindRedis, newRedisTask)
	services.Register(domain.ServiceKindMemcached, newMemcachedTask)
	services.Register(domain.ServiceKindInMemory, newInMemoryTask)
}

// Config is the opaque JSON shape for a Cache service.
type Config struct {
	Addr       string `json:"addr"`
	Password   string `json:"password,omitempty"`
	DB         int    `json:"db,omitempty"`
	DefaultTTL int    `json:"default_ttl_seconds,omitempty"`
}

// Handle is the clonable per-request reference to a cache task (§3). Every
// backend call runs on the task's owning actor goroutine, serialized in
// arrival order against every other command the task receives (§4.3).
type Handle struct {
	kind       domain.ServiceKind
	defaultTTL time.Duration
	backend    backend
	actor      *services.Actor
}

// backend abstracts the three wire protocols behind one command surface,
// letting Handle stay identical across kinds; each backend still runs as
// its own owning task per §4.3 ("each active service is a task").
type backend interface {
	get(ctx context.Context, key string) (string, bool, error)
	set(ctx context.Context, key, value string, ttl time.Duration) error
	del(ctx context.Context, key string) (bool, error)
	exists(ctx context.Context, key string) (bool, error)
	incr(ctx context.Context, key string, delta int64) (int64, error)
	health(ctx context.Context) bool
	shutdown() error
}

func newRedisTask(raw json.RawMessage) (services.Task, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	if cfg.Addr == "" {
		return nil, fmt.Errorf("%w: addr is required", domain.ErrInvalidConfig)
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConnectionFailed, err)
	}
	return &Handle{kind: domain.ServiceKindRedis, defaultTTL: ttlOf(cfg), backend: &redisBackend{client: client}, actor: services.NewActor()}, nil
}

func newMemcachedTask(raw json.RawMessage) (services.Task, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	if cfg.Addr == "" {
		return nil, fmt.Errorf("%w: addr is required", domain.ErrInvalidConfig)
	}
	client := memcache.New(cfg.Addr)
	if err := client.Ping(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConnectionFailed, err)
	}
	return &Handle{kind: domain.ServiceKindMemcached, defaultTTL: ttlOf(cfg), backend: &memcachedBackend{client: client}, actor: services.NewActor()}, nil
}

func newInMemoryTask(raw json.RawMessage) (services.Task, error) {
	var cfg Config
	_ = json.Unmarshal(raw, &cfg)
	return &Handle{kind: domain.ServiceKindInMemory, defaultTTL: ttlOf(cfg), backend: newInMemoryBackend(), actor: services.NewActor()}, nil
}

func ttlOf(cfg Config) time.Duration {
	if cfg.DefaultTTL <= 0 {
		return 0
	}
	return time.Duration(cfg.DefaultTTL) * time.Second
}

func (h *Handle) Kind() domain.ServiceKind { return h.kind }

func (h *Handle) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	var ok bool
	var opErr error
	if err := h.actor.Do(ctx, func() { value, ok, opErr = h.backend.get(ctx, key) }); err != nil {
		return "", false, err
	}
	return value, ok, opErr
}

// Set stores value under key. A nil ttl uses the configured default; an
// explicit zero is passed through as no expiration, matching §4.3's TTL
// semantics.
func (h *Handle) Set(ctx context.Context, key, value string, ttl *time.Duration) error {
	effective := h.defaultTTL
	if ttl != nil {
		effective = *ttl
	}
	var opErr error
	if err := h.actor.Do(ctx, func() { opErr = h.backend.set(ctx, key, value, effective) }); err != nil {
		return err
	}
	return opErr
}

func (h *Handle) Delete(ctx context.Context, key string) (bool, error) {
	var deleted bool
	var opErr error
	if err := h.actor.Do(ctx, func() { deleted, opErr = h.backend.del(ctx, key) }); err != nil {
		return false, err
	}
	return deleted, opErr
}

func (h *Handle) Exists(ctx context.Context, key string) (bool, error) {
	var exists bool
	var opErr error
	if err := h.actor.Do(ctx, func() { exists, opErr = h.backend.exists(ctx, key) }); err != nil {
		return false, err
	}
	return exists, opErr
}

// MGet runs as one actor command so the whole batch is serialized against
// concurrent writers as a unit rather than interleaving key-by-key.
func (h *Handle) MGet(ctx context.Context, keys []string) ([]*string, error) {
	out := make([]*string, len(keys))
	var opErr error
	err := h.actor.Do(ctx, func() {
		for i, k := range keys {
			v, ok, e := h.backend.get(ctx, k)
			if e != nil {
				opErr = e
				return
			}
			if ok {
				out[i] = &v
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return out, opErr
}

// Incr adds delta to key, creating it at delta if absent. A non-integer
// existing value fails with InvalidType (§4.3).
func (h *Handle) Incr(ctx context.Context, key string, delta int64) (int64, error) {
	var n int64
	var opErr error
	if err := h.actor.Do(ctx, func() { n, opErr = h.backend.incr(ctx, key, delta) }); err != nil {
		return 0, err
	}
	return n, opErr
}

func (h *Handle) Health(timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	var healthy bool
	err := h.actor.Do(ctx, func() { healthy = h.backend.health(ctx) })
	return err == nil && healthy
}

// Shutdown queues the backend's own shutdown as the task's last command, so
// every command already in flight completes first, then stops the actor.
func (h *Handle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var opErr error
	_ = h.actor.Do(ctx, func() { opErr = h.backend.shutdown() })
	h.actor.Stop()
	return opErr
}

// --- redis backend ---

type redisBackend struct{ client *redis.Client }

func (b *redisBackend) get(ctx context.Context, key string) (string, bool, error) {
	v, err := b.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", domain.ErrQueryFailed, err)
	}
	return v, true, nil
}

func (b *redisBackend) set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := b.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrQueryFailed, err)
	}
	return nil
}

func (b *redisBackend) del(ctx context.Context, key string) (bool, error) {
	n, err := b.client.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrQueryFailed, err)
	}
	return n > 0, nil
}

func (b *redisBackend) exists(ctx context.Context, key string) (bool, error) {
	n, err := b.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrQueryFailed, err)
	}
	return n > 0, nil
}

func (b *redisBackend) incr(ctx context.Context, key string, delta int64) (int64, error) {
	n, err := b.client.IncrBy(ctx, key, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidType, err)
	}
	return n, nil
}

func (b *redisBackend) health(ctx context.Context) bool {
	return b.client.Ping(ctx).Err() == nil
}

func (b *redisBackend) shutdown() error {
	return b.client.Close()
}

// --- memcached backend ---

type memcachedBackend struct{ client *memcache.Client }

func (b *memcachedBackend) get(ctx context.Context, key string) (string, bool, error) {
	item, err := b.client.Get(key)
	if err == memcache.ErrCacheMiss {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", domain.ErrQueryFailed, err)
	}
	return string(item.Value), true, nil
}

func (b *memcachedBackend) set(ctx context.Context, key, value string, ttl time.Duration) error {
	err := b.client.Set(&memcache.Item{Key: key, Value: []byte(value), Expiration: int32(ttl.Seconds())})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrQueryFailed, err)
	}
	return nil
}

func (b *memcachedBackend) del(ctx context.Context, key string) (bool, error) {
	err := b.client.Delete(key)
	if err == memcache.ErrCacheMiss {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrQueryFailed, err)
	}
	return true, nil
}

func (b *memcachedBackend) exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := b.get(ctx, key)
	return ok, err
}

func (b *memcachedBackend) incr(ctx context.Context, key string, delta int64) (int64, error) {
	var newVal uint64
	var err error
	if delta >= 0 {
		newVal, err = b.client.Increment(key, uint64(delta))
	} else {
		newVal, err = b.client.Decrement(key, uint64(-delta))
	}
	if err == memcache.ErrCacheMiss {
		if setErr := b.client.Add(&memcache.Item{Key: key, Value: []byte(strconv.FormatInt(delta, 10))}); setErr != nil {
			return 0, fmt.Errorf("%w: %v", domain.ErrQueryFailed, setErr)
		}
		return delta, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidType, err)
	}
	return int64(newVal), nil
}

func (b *memcachedBackend) health(ctx context.Context) bool {
	return b.client.Ping() == nil
}

func (b *memcachedBackend) shutdown() error {
	return nil
}

// --- in-memory backend ---

type inMemoryEntry struct {
	value   string
	expires time.Time
}

type inMemoryBackend struct {
	mu    sync.Mutex
	items map[string]inMemoryEntry
}

func newInMemoryBackend() *inMemoryBackend {
	return &inMemoryBackend{items: make(map[string]inMemoryEntry)}
}

func (b *inMemoryBackend) get(ctx context.Context, key string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.items[key]
	if !ok {
		return "", false, nil
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		delete(b.items, key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (b *inMemoryBackend) set(ctx context.Context, key, value string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	b.items[key] = inMemoryEntry{value: value, expires: expires}
	return nil
}

func (b *inMemoryBackend) del(ctx context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.items[key]
	delete(b.items, key)
	return ok, nil
}

func (b *inMemoryBackend) exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := b.get(ctx, key)
	return ok, err
}

func (b *inMemoryBackend) incr(ctx context.Context, key string, delta int64) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.items[key]
	if !ok {
		b.items[key] = inMemoryEntry{value: strconv.FormatInt(delta, 10)}
		return delta, nil
	}
	n, err := strconv.ParseInt(e.value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: existing value is not an integer", domain.ErrInvalidType)
	}
	n += delta
	e.value = strconv.FormatInt(n, 10)
	b.items[key] = e
	return n, nil
}

func (b *inMemoryBackend) health(ctx context.Context) bool { return true }

func (b *inMemoryBackend) shutdown() error { return nil }
