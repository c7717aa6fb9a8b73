package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// CacheKeyPrefix namespaces cached series in the key space.
	CacheKeyPrefix = "screener:series:%s:%s"
	// DefaultCacheTTL is how long a fetched series is served from cache.
	DefaultCacheTTL = 5 * time.Minute
)

// ErrCacheMiss is returned by a KV when the key does not exist.
var ErrCacheMiss = errors.New("cache miss")

// KV is the subset of a key-value store the cache needs.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisKV adapts a go-redis client to KV.
type RedisKV struct {
	client *redis.Client
}

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	Address  string
	Password string
	DB       int
	PoolSize int
}

// NewRedisKV connects to Redis.
func NewRedisKV(opts RedisOptions) *RedisKV {
	return &RedisKV{client: redis.NewClient(&redis.Options{
		Addr:         opts.Address,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		MaxRetries:   1,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})}
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return v, err
}

func (r *RedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Ping checks connectivity.
func (r *RedisKV) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (r *RedisKV) Close() error {
	return r.client.Close()
}

// CachedSource serves recent fetches of the wrapped source from a KV store.
// Cache failures are logged and the fetch passes through.
type CachedSource struct {
	next   Source
	kv     KV
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedSource wraps next. A non-positive ttl selects DefaultCacheTTL.
func NewCachedSource(next Source, kv KV, ttl time.Duration, logger zerolog.Logger) *CachedSource {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedSource{
		next:   next,
		kv:     kv,
		ttl:    ttl,
		logger: logger.With().Str("component", "series_cache").Logger(),
	}
}

func (c *CachedSource) Name() string {
	return c.next.Name()
}

// CacheKey returns the key a series of symbol is cached under.
func (c *CachedSource) CacheKey(symbol string) string {
	return fmt.Sprintf(CacheKeyPrefix, c.next.Name(), symbol)
}

func (c *CachedSource) Fetch(ctx context.Context, symbol string) (*RawSeries, error) {
	key := c.CacheKey(symbol)

	data, err := c.kv.Get(ctx, key)
	switch {
	case err == nil:
		var rs RawSeries
		if jerr := json.Unmarshal([]byte(data), &rs); jerr == nil && rs.Len() > 0 {
			c.logger.Debug().Str("key", key).Int("count", rs.Len()).Msg("Cache hit")
			return &rs, nil
		}
		c.logger.Warn().Str("key", key).Msg("Discarding unreadable cache entry")
	case !errors.Is(err, ErrCacheMiss):
		c.logger.Warn().Err(err).Str("key", key).Msg("Cache read failed")
	}

	rs, err := c.next.Fetch(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if rs.Len() == 0 {
		return rs, nil
	}

	encoded, err := json.Marshal(rs)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Cache encode failed")
		return rs, nil
	}
	if err := c.kv.Set(ctx, key, string(encoded), c.ttl); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}

	return rs, nil
}
