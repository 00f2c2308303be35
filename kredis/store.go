// Package kredis stores accountguard tables in Redis.
//
// Each kv.Table is a Redis hash named prefix+table whose fields are the
// record keys. Audit events go into a sorted set scored by their timestamp.
package kredis

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/getkayan/accountguard/core/kv"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix is used when no prefix is given.
const DefaultPrefix = "accountguard:"

// Store implements kv.Store using Redis hashes.
type Store struct {
	client redis.UniversalClient
	prefix string
}

// NewStore wraps an existing client. Closing the Store closes the client.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// Open connects to Redis and checks the connection with PING.
func Open(ctx context.Context, opts *redis.Options, prefix string) (*Store, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", opts.Addr, err)
	}
	return NewStore(client, prefix), nil
}

func (s *Store) Client() redis.UniversalClient {
	return s.client
}

func (s *Store) hashKey(table kv.Table) string {
	return s.prefix + string(table)
}

func (s *Store) Get(ctx context.Context, table kv.Table, key string) ([]byte, error) {
	b, err := s.client.HGet(ctx, s.hashKey(table), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: hget %s: %w", table, err)
	}
	return b, nil
}

func (s *Store) Set(ctx context.Context, table kv.Table, key string, value []byte) error {
	if err := s.client.HSet(ctx, s.hashKey(table), key, value).Err(); err != nil {
		return fmt.Errorf("redis: hset %s: %w", table, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, table kv.Table, key string) error {
	if err := s.client.HDel(ctx, s.hashKey(table), key).Err(); err != nil {
		return fmt.Errorf("redis: hdel %s: %w", table, err)
	}
	return nil
}

func (s *Store) Keys(ctx context.Context, table kv.Table) ([]string, error) {
	keys, err := s.client.HKeys(ctx, s.hashKey(table)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: hkeys %s: %w", table, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
