package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-user-auth/internal/config"
	"github.com/go-user-auth/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// incrWithExpiryLua increments KEYS[1] and arms its expiry only when the
// counter is new (or somehow lost its TTL). Later increments in the same
// window never push the expiry out.
// KEYS[1] = counter key
// ARGV[1] = window in milliseconds
var incrWithExpiryLua = goredis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 or redis.call('PTTL', KEYS[1]) == -1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// consumeIfEqualLua deletes KEYS[1] only when its value equals ARGV[1].
// Returns {1, remaining ttl ms} when consumed, {0, 0} when absent and
// {-1, 0} when present with another value (left untouched).
var consumeIfEqualLua = goredis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then
  return {0, 0}
end
if v ~= ARGV[1] then
  return {-1, 0}
end
local ttl = redis.call('PTTL', KEYS[1])
redis.call('DEL', KEYS[1])
return {1, ttl}
`)

// Cache is the TTL key-value store shared by tickets, rate buckets and the
// refresh registry. Every error it returns wraps domain.ErrDependencyUnavailable.
type Cache struct {
	rdb goredis.UniversalClient
}

func NewClient(cfg config.Redis) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewCache(rdb goredis.UniversalClient) *Cache {
	return &Cache{rdb: rdb}
}

// keyPrefix keeps only the namespace of key. The suffix can be a live
// verification token or an email and must not reach logs.
func keyPrefix(key string) string {
	if i := strings.LastIndexByte(key, ':'); i >= 0 {
		return key[:i+1] + "*"
	}
	return "*"
}

func unavailable(op, key string, err error) error {
	if key == "" {
		return fmt.Errorf("redis %s: %w: %w", op, domain.ErrDependencyUnavailable, err)
	}
	return fmt.Errorf("redis %s %s: %w: %w", op, keyPrefix(key), domain.ErrDependencyUnavailable, err)
}

func (c *Cache) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return unavailable("ping", "", err)
	}
	return nil
}

func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return unavailable("set", key, err)
	}
	return nil
}

// Get returns ok=false when the key does not exist.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable("get", key, err)
	}
	return v, true, nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return unavailable("del", key, err)
	}
	return nil
}

func (c *Cache) IncrWithExpiryOnFirstWrite(ctx context.Context, key string, window time.Duration) (int64, error) {
	n, err := incrWithExpiryLua.Run(ctx, c.rdb, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, unavailable("incr", key, err)
	}
	return n, nil
}

// ConsumeIfEqual atomically deletes key when it holds expected and reports
// whether it did. On success the remaining TTL the key had is returned so a
// caller can restore it. An absent key and a different value both report false.
func (c *Cache) ConsumeIfEqual(ctx context.Context, key, expected string) (bool, time.Duration, error) {
	res, err := consumeIfEqualLua.Run(ctx, c.rdb, []string{key}, expected).Int64Slice()
	if err != nil {
		return false, 0, unavailable("consume", key, err)
	}
	if len(res) != 2 {
		return false, 0, unavailable("consume", key, fmt.Errorf("unexpected reply %v", res))
	}
	return res[0] == 1, time.Duration(res[1]) * time.Millisecond, nil
}
