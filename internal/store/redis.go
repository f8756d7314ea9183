package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisOpTimeout = 5 * time.Second

// RedisStore keeps records as JSON strings under a namespaced key. Suitable
// when several backend instances share one character population.
type RedisStore struct {
	client    *redis.Client
	namespace string
}

// NewRedisStore connects to redis and verifies the connection.
func NewRedisStore(addr string, db int, namespace string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	if namespace == "" {
		namespace = "companion"
	}
	return &RedisStore{client: client, namespace: namespace}, nil
}

func (s *RedisStore) redisKey(key string) string {
	return s.namespace + ":" + key
}

// Load unmarshals the record for key into v.
func (s *RedisStore) Load(key string, v any) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	value, err := s.client.Get(ctx, s.redisKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load record %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(value), v); err != nil {
		return fmt.Errorf("failed to parse record %s: %w", key, err)
	}
	return nil
}

// Save stores the record for key.
func (s *RedisStore) Save(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %w", key, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := s.client.Set(ctx, s.redisKey(key), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save record %s: %w", key, err)
	}
	return nil
}

// Delete removes the record for key.
func (s *RedisStore) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := s.client.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete record %s: %w", key, err)
	}
	return nil
}

// Keys scans for stored keys with the given prefix.
func (s *RedisStore) Keys(prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	pattern := s.redisKey(prefix) + "*"
	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.namespace+":"))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan records: %w", err)
	}
	return keys, nil
}

// Close closes the redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
