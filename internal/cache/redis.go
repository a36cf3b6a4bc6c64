package cache

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 2 * time.Second

var (
	newRedisClient = func(opts *redis.Options) *redis.Client {
		return redis.NewClient(opts)
	}
	pingRedis = func(ctx context.Context, client *redis.Client) error {
		return client.Ping(ctx).Err()
	}
	parseRedisURL = redis.ParseURL
)

// RedisCache stores values in Redis with a per-key TTL.
type RedisCache struct {
	client *redis.Client
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return b, true
}

func (r *RedisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, val, ttl).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

// New connects to redisURL and falls back to an in-process cache when the
// URL is empty, unparsable, or the server does not answer a ping.
func New(ctx context.Context, redisURL string) Cache {
	addr := strings.TrimSpace(redisURL)
	if addr == "" {
		log.Println("Warning: REDIS_URL not set, using in-memory cache")
		return NewMemoryCache()
	}

	opts := &redis.Options{Addr: addr}
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := parseRedisURL(addr)
		if err != nil {
			log.Printf("Warning: failed to parse REDIS_URL, using in-memory cache: %v", err)
			return NewMemoryCache()
		}
		opts = parsed
	}

	client := newRedisClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pingRedis(pingCtx, client); err != nil {
		log.Printf("Warning: Redis unreachable at %s, using in-memory cache: %v", opts.Addr, err)
		_ = client.Close()
		return NewMemoryCache()
	}
	log.Println("Connected to Redis")
	return &RedisCache{client: client}
}
