// Package cache holds the Redis-backed cache for computed board snapshots.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const snapshotTTL = 5 * time.Minute

// BoardCache caches board snapshots keyed by the evaluation day and the
// timeline window. Any tender write invalidates the whole prefix: board
// responses aggregate every record, so finer-grained invalidation buys
// nothing.
type BoardCache struct {
	client *redis.Client
	prefix string
}

// NewBoardCache connects to Redis and verifies the connection.
func NewBoardCache(redisURL string) (*BoardCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &BoardCache{client: client, prefix: "board:"}, nil
}

// NewBoardCacheWithClient creates a cache from an existing Redis client.
func NewBoardCacheWithClient(client *redis.Client) *BoardCache {
	return &BoardCache{client: client, prefix: "board:"}
}

func (c *BoardCache) key(today string, windowDays int) string {
	return fmt.Sprintf("%s%s:%d", c.prefix, today, windowDays)
}

// Get returns a cached snapshot, or ok=false on miss or any Redis error.
// Cache failures never surface to the caller; the board is recomputed.
func (c *BoardCache) Get(ctx context.Context, today string, windowDays int) (map[string]any, bool) {
	jsonData, err := c.client.Get(ctx, c.key(today, windowDays)).Result()
	if err != nil {
		return nil, false
	}
	var snapshot map[string]any
	if err := json.Unmarshal([]byte(jsonData), &snapshot); err != nil {
		return nil, false
	}
	return snapshot, true
}

// Set stores a snapshot with a short TTL.
func (c *BoardCache) Set(ctx context.Context, today string, windowDays int, snapshot map[string]any) error {
	jsonData, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal board snapshot: %w", err)
	}
	if err := c.client.Set(ctx, c.key(today, windowDays), jsonData, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("save board snapshot: %w", err)
	}
	return nil
}

// Invalidate drops every cached snapshot.
func (c *BoardCache) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("drop board snapshot: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan board snapshots: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (c *BoardCache) Close() error {
	return c.client.Close()
}

// Ping checks if Redis is reachable
func (c *BoardCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
