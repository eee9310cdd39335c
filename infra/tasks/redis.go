// Package tasks provides the Redis-backed task store used when results must
// survive a process restart or be shared between replicas.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	coretasks "ambuplan/core/tasks"
)

const keyPrefix = "ambuplan:task:"

// RedisStore persists tasks as JSON values with a TTL. Finished schedules are
// poll-once artifacts, so expiring them after a retention window keeps the
// keyspace bounded.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore connects to the given Redis URL (redis://host:port/db). A
// non-positive ttl defaults to 24h.
func NewRedisStore(url string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{rdb: redis.NewClient(opt), ttl: ttl}, nil
}

// NewRedisStoreFromClient wraps an existing client, mainly for tests.
func NewRedisStoreFromClient(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// Ping verifies connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func (s *RedisStore) Create(ctx context.Context, t coretasks.Task) error {
	return s.write(ctx, t)
}

func (s *RedisStore) Get(ctx context.Context, id string) (coretasks.Task, error) {
	raw, err := s.rdb.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return coretasks.Task{}, coretasks.ErrNotFound
	}
	if err != nil {
		return coretasks.Task{}, fmt.Errorf("reading task %s: %w", id, err)
	}
	var t coretasks.Task
	if err := json.Unmarshal(raw, &t); err != nil {
		return coretasks.Task{}, fmt.Errorf("decoding task %s: %w", id, err)
	}
	return t, nil
}

func (s *RedisStore) Update(ctx context.Context, t coretasks.Task) error {
	exists, err := s.rdb.Exists(ctx, keyPrefix+t.ID).Result()
	if err != nil {
		return fmt.Errorf("checking task %s: %w", t.ID, err)
	}
	if exists == 0 {
		return coretasks.ErrNotFound
	}
	return s.write(ctx, t)
}

func (s *RedisStore) write(ctx context.Context, t coretasks.Task) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encoding task %s: %w", t.ID, err)
	}
	if err := s.rdb.Set(ctx, keyPrefix+t.ID, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("writing task %s: %w", t.ID, err)
	}
	return nil
}
