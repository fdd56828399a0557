// Package cache provides a Redis client wrapper and the snapshot cache
// used for whole-level learning-path reads.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps a Redis client.
type Cache struct {
	Client *redis.Client
}

// ParseURL validates a Redis connection URL.
func ParseURL(url string) (*redis.Options, error) {
	if url == "" {
		return nil, fmt.Errorf("cache URL is empty")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid cache URL: %w", err)
	}
	return opts, nil
}

// New creates a new cache client.
func New(ctx context.Context, url string) (*Cache, error) {
	opts, err := ParseURL(url)
	if err != nil {
		return nil, err
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging cache: %w", err)
	}

	return &Cache{Client: client}, nil
}

// Close shuts down the cache client.
func (c *Cache) Close() error {
	return c.Client.Close()
}

// HealthCheck verifies the cache connection is alive.
func (c *Cache) HealthCheck(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

// Snapshots adapts the Redis client to the learning core's snapshot
// cache. All failures degrade to cache misses; the core recomputes.
type Snapshots struct {
	client *redis.Client
}

// NewSnapshots creates the snapshot cache over a connected client.
func NewSnapshots(c *Cache) *Snapshots {
	return &Snapshots{client: c.Client}
}

// Get returns the cached bytes for a key, reporting a miss on any error.
func (s *Snapshots) Get(ctx context.Context, key string) ([]byte, bool) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("snapshot cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	return raw, true
}

// Set stores bytes under a key with a TTL; failures are logged and
// ignored.
func (s *Snapshots) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	if err := s.client.Set(ctx, key, val, ttl).Err(); err != nil {
		slog.Warn("snapshot cache set failed", "key", key, "error", err)
	}
}

// Delete drops keys; failures are logged and ignored.
func (s *Snapshots) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		slog.Warn("snapshot cache delete failed", "keys", keys, "error", err)
	}
}
