package slots

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces slot keys.
const DefaultRedisPrefix = "trace-review:slot:"

// Redis stores each slot as a plain string key.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis connects a Redis-backed slot store. An empty prefix uses
// DefaultRedisPrefix.
func NewRedis(opts *redis.Options, prefix string) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis{rdb: redis.NewClient(opts), prefix: prefix}
}

// Key returns the Redis key for a slot.
func (r *Redis) Key(name string) string {
	return r.prefix + name
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

// Read fetches the slot; redis.Nil maps to not found.
func (r *Redis) Read(ctx context.Context, name string) ([]byte, bool, error) {
	data, err := r.rdb.Get(ctx, r.Key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read slot from Redis: %w", err)
	}
	return data, true, nil
}

// Write stores the slot with no expiry.
func (r *Redis) Write(ctx context.Context, name string, data []byte) error {
	if err := r.rdb.Set(ctx, r.Key(name), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write slot to Redis: %w", err)
	}
	return nil
}
