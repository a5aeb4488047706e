package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces every key written to redis.
const KeyPrefix = "markdb:mdv:"

// Redis stores JSON-encoded values in a redis server.
type Redis[V any] struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to the server at url, e.g. redis://localhost:6379/0.
//
// A zero ttl keeps entries until evicted by the server.
func NewRedis[V any](ctx context.Context, url string, ttl time.Duration) (*Redis[V], error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &Redis[V]{client: client, ttl: ttl}, nil
}

// Get implements Cache.
func (r *Redis[V]) Get(ctx context.Context, key string) (V, bool) {
	var v V
	b, err := r.client.Get(ctx, KeyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.WarnContext(ctx, "Redis get failed", "err", err)
		}
		return v, false
	}
	if err := json.Unmarshal(b, &v); err != nil {
		slog.WarnContext(ctx, "Corrupted redis cache entry", "key", key, "err", err)
		return v, false
	}
	return v, true
}

// Set implements Cache.
func (r *Redis[V]) Set(ctx context.Context, key string, v V) {
	b, err := json.Marshal(v)
	if err != nil {
		slog.WarnContext(ctx, "Failed to encode cache entry", "err", err)
		return
	}
	if err := r.client.Set(ctx, KeyPrefix+key, b, r.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "Redis set failed", "err", err)
	}
}

// Close closes the connection pool.
func (r *Redis[V]) Close() error {
	return r.client.Close()
}
