package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"price-fetcher/internal/domain/model"
	"price-fetcher/internal/metrics"
	"price-fetcher/pkg/logger"
	"price-fetcher/pkg/utils"
)

const redisKeyPrefix = "rate:"

// RedisCache is the shared-cache alternative to FileCache for setups where
// several fetcher instances want one rate store. Writes are synchronous on
// the Redis side, so there is no background writer to coalesce; historical
// rates never change, so entries carry no TTL.
type RedisCache struct {
	client  *redis.Client
	log     *logger.Logger
	metrics *metrics.Metrics
}

func NewRedisCache(addr, password string, db int, log *logger.Logger, m *metrics.Metrics) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisCache{client: client, log: log, metrics: m}, nil
}

func (c *RedisCache) Get(ctx context.Context, date time.Time) (*model.ExchangeRate, bool) {
	key := redisKeyPrefix + utils.FormatDate(date)

	rate := c.fetch(ctx, key)
	if rate == nil {
		c.metrics.CacheMissesTotal.Inc()
		c.log.Debug("Cache miss", "key", key)
		return nil, false
	}

	c.metrics.CacheHitsTotal.Inc()
	c.log.Debug("Cache hit", "key", key)
	return rate, true
}

func (c *RedisCache) Put(ctx context.Context, date time.Time, rate *model.ExchangeRate) *model.ExchangeRate {
	key := redisKeyPrefix + utils.FormatDate(date)

	previous := c.fetch(ctx, key)

	data, err := json.Marshal(rate)
	if err != nil {
		c.log.Error("Failed to encode rate for cache", "key", key, "error", err)
		return previous
	}
	if err := c.client.Set(ctx, key, data, 0).Err(); err != nil {
		// The fetch already succeeded; a failed cache write is only logged.
		c.log.Error("Redis set failed", "key", key, "error", err)
	}
	return previous
}

func (c *RedisCache) Remove(ctx context.Context, date time.Time) *model.ExchangeRate {
	key := redisKeyPrefix + utils.FormatDate(date)

	previous := c.fetch(ctx, key)
	if previous == nil {
		return nil
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.log.Error("Redis delete failed", "key", key, "error", err)
		return nil
	}
	return previous
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// fetch reads and decodes one entry. Any failure is treated as a cold cache
// rather than a fatal condition.
func (c *RedisCache) fetch(ctx context.Context, key string) *model.ExchangeRate {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		c.log.Error("Redis get failed", "key", key, "error", err)
		return nil
	}

	var rate model.ExchangeRate
	if err := json.Unmarshal([]byte(val), &rate); err != nil {
		c.log.Error("Failed to decode cached rate", "key", key, "error", err)
		return nil
	}
	return &rate
}
