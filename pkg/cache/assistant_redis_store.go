// Package cache provides the optional Redis backend for the snapshot and
// draft stores.
package cache

import (
	"context"
	"time"

	"assistant_server/core/domain"
	"assistant_server/pkg/apperr"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// =============================================================================
// Redis-Backed Stores
// =============================================================================
//
// The flat-file stores are the default deployment. When REDIS_URL is set the
// same ports are served from Redis hashes instead, which lets several
// assistant processes share pending state.

const (
	snapshotHashKey = "assistant:snapshots"
	draftHashKey    = "assistant:drafts"

	opTimeout = 5 * time.Second
)

// NewClient connects to Redis from a URL and verifies the connection.
func NewClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, apperr.ConfigError("redis", "invalid REDIS_URL").WithError(err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, apperr.Transport("redis", err)
	}
	return client, nil
}

// -----------------------------------------------------------------------------
// Snapshot Store
// -----------------------------------------------------------------------------

// RedisSnapshotStore implements out.SnapshotStore on a Redis hash.
type RedisSnapshotStore struct {
	client *redis.Client
}

// NewRedisSnapshotStore creates a snapshot store over an existing client.
func NewRedisSnapshotStore(client *redis.Client) *RedisSnapshotStore {
	return &RedisSnapshotStore{client: client}
}

func (s *RedisSnapshotStore) Put(key string, msg *domain.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return apperr.Internal("failed to encode snapshot", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := s.client.HSet(ctx, snapshotHashKey, key, data).Err(); err != nil {
		return apperr.Transport("redis", err)
	}
	return nil
}

func (s *RedisSnapshotStore) Get(key string) (*domain.Message, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	data, err := s.client.HGet(ctx, snapshotHashKey, key).Bytes()
	if err != nil {
		return nil, false
	}

	msg := &domain.Message{}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, false
	}
	return msg, true
}

func (s *RedisSnapshotStore) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := s.client.HDel(ctx, snapshotHashKey, key).Err(); err != nil {
		return apperr.Transport("redis", err)
	}
	return nil
}

// Reload is a no-op: Redis is always the authoritative copy.
func (s *RedisSnapshotStore) Reload() error {
	return nil
}

func (s *RedisSnapshotStore) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	n, err := s.client.HLen(ctx, snapshotHashKey).Result()
	if err != nil {
		return 0
	}
	return int(n)
}

// -----------------------------------------------------------------------------
// Draft Store
// -----------------------------------------------------------------------------

// RedisDraftStore implements out.DraftStore on a Redis hash.
type RedisDraftStore struct {
	client *redis.Client
}

// NewRedisDraftStore creates a draft store over an existing client.
func NewRedisDraftStore(client *redis.Client) *RedisDraftStore {
	return &RedisDraftStore{client: client}
}

func (s *RedisDraftStore) Put(key string, draft string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := s.client.HSet(ctx, draftHashKey, key, draft).Err(); err != nil {
		return apperr.Transport("redis", err)
	}
	return nil
}

func (s *RedisDraftStore) Get(key string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	draft, err := s.client.HGet(ctx, draftHashKey, key).Result()
	if err != nil {
		return "", false
	}
	return draft, true
}

func (s *RedisDraftStore) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := s.client.HDel(ctx, draftHashKey, key).Err(); err != nil {
		return apperr.Transport("redis", err)
	}
	return nil
}

// Reload is a no-op: Redis is always the authoritative copy.
func (s *RedisDraftStore) Reload() error {
	return nil
}

func (s *RedisDraftStore) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	n, err := s.client.HLen(ctx, draftHashKey).Result()
	if err != nil {
		return 0
	}
	return int(n)
}
