package inventory

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps inventory snapshots in Redis hashes. Entry TTLs map onto
// native key expiry, so DeleteExpired has nothing to sweep.
type RedisStore struct {
	client    RedisClient
	keyPrefix string
}

// RedisClient is the minimal client surface used by RedisStore.
type RedisClient interface {
	Pipeline() RedisPipeliner
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisPipeliner is the subset of commands used within a pipeline.
type RedisPipeliner interface {
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Exec(ctx context.Context) ([]redis.Cmder, error)
}

// NewRedisStore constructs a Redis-backed cache store.
func NewRedisStore(client RedisClient, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "inventory:"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisStore) Get(ctx context.Context, sku string) (Entry, bool, error) {
	values, err := s.client.HGetAll(ctx, s.keyPrefix+sku).Result()
	if err != nil {
		return Entry{}, false, err
	}
	if len(values) == 0 {
		return Entry{}, false, nil
	}

	entry := Entry{SKU: sku}
	entry.Fulfillable = atoiField(values, "fulfillable")
	entry.Total = atoiField(values, "total")
	entry.Reserved = atoiField(values, "reserved")
	entry.Inbound = atoiField(values, "inbound")
	entry.Unfulfillable = atoiField(values, "unfulfillable")
	if raw := values["updated_at"]; raw != "" {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			entry.UpdatedAt = ts
		}
	}
	if raw := values["expires_at"]; raw != "" {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			entry.ExpiresAt = ts
		}
	}
	return entry, true, nil
}

func (s *RedisStore) Put(ctx context.Context, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := s.keyPrefix + entry.SKU
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, map[string]any{
		"fulfillable":   entry.Fulfillable,
		"total":         entry.Total,
		"reserved":      entry.Reserved,
		"inbound":       entry.Inbound,
		"unfulfillable": entry.Unfulfillable,
		"updated_at":    entry.UpdatedAt.UTC().Format(time.RFC3339Nano),
		"expires_at":    entry.ExpiresAt.UTC().Format(time.RFC3339Nano),
	})
	if ttl := time.Until(entry.ExpiresAt); ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Delete(ctx context.Context, sku string) error {
	return s.client.Del(ctx, s.keyPrefix+sku).Err()
}

func (s *RedisStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	// Redis expires keys itself.
	return 0, ctx.Err()
}

// WrapRedisClient adapts a *redis.Client to the narrow RedisClient surface.
func WrapRedisClient(client *redis.Client) RedisClient {
	return redisClientAdapter{client: client}
}

type redisClientAdapter struct {
	client *redis.Client
}

func (a redisClientAdapter) Pipeline() RedisPipeliner {
	return redisPipelineAdapter{pipe: a.client.Pipeline()}
}

func (a redisClientAdapter) HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd {
	return a.client.HGetAll(ctx, key)
}

func (a redisClientAdapter) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	return a.client.Del(ctx, keys...)
}

type redisPipelineAdapter struct {
	pipe redis.Pipeliner
}

func (p redisPipelineAdapter) HSet(ctx context.Context, key string, values ...any) *redis.IntCmd {
	return p.pipe.HSet(ctx, key, values...)
}

func (p redisPipelineAdapter) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	return p.pipe.Expire(ctx, key, expiration)
}

func (p redisPipelineAdapter) Exec(ctx context.Context) ([]redis.Cmder, error) {
	return p.pipe.Exec(ctx)
}

func atoiField(values map[string]string, field string) int {
	n, _ := strconv.Atoi(values[field])
	return n
}
