package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zainabsaad99/EECE798S-Project/config"
	"github.com/zainabsaad99/EECE798S-Project/models"
)

// NewRedis dials Redis using the configured host and port and verifies the
// connection with a ping.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// RunCache mirrors run rows in Redis so status polling does not hit Postgres
// on every request. Entries expire on their own; Postgres stays the source
// of truth.
type RunCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRunCache(rdb *redis.Client, ttl time.Duration) *RunCache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RunCache{rdb: rdb, ttl: ttl}
}

func runKey(id string) string { return "run:" + id }

// Put overwrites the cached copy of a run. Failures are returned so callers
// can log them, but a cache miss never blocks the run itself.
func (c *RunCache) Put(ctx context.Context, run models.Run) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, runKey(run.ID), data, c.ttl).Err()
}

// Get returns the cached run and whether it was present.
func (c *RunCache) Get(ctx context.Context, id string) (models.Run, bool) {
	if c == nil || c.rdb == nil {
		return models.Run{}, false
	}
	val, err := c.rdb.Get(ctx, runKey(id)).Result()
	if err != nil {
		return models.Run{}, false
	}
	var run models.Run
	if err := json.Unmarshal([]byte(val), &run); err != nil {
		return models.Run{}, false
	}
	return run, true
}
