// Package cachestore is the key-value abstraction the rest of sqldb-go
// builds on (spec §4.C). It wraps a Redis client with get/set/del/scan/
// multi-del/ping and health-tolerant degrade-to-no-op semantics: a
// transiently unhealthy store never fails the caller, it just misses.
package cachestore

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/erbhushanpawar/sqldb-go/internal/debug"
)

// scanBatchSize bounds every SCAN call (spec §4.C: "Scan must use a bounded
// batch (≤ 100) and loop to exhaustion").
const scanBatchSize = 100

// Store is the KV abstraction. It is safe for concurrent use.
type Store struct {
	client  *redis.Client
	healthy atomic.Int32 // 1 = last known-good ping, 0 = degraded
}

// New wraps an existing *redis.Client.
func New(client *redis.Client) *Store {
	s := &Store{client: client}
	s.healthy.Store(1)
	return s
}

// Get returns the raw bytes for key. A miss (including a degraded store)
// returns (nil, false, nil) — never an error the caller must special-case.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		s.markDegraded(err)
		return nil, false, nil
	}
	s.markHealthy()
	return val, true, nil
}

// Set stores value under key with an optional ttl (zero means no expiry).
// A transient store failure is swallowed: set becomes a no-op, never an
// error the write path must react to (spec §4.C).
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		s.markDegraded(err)
		return
	}
	s.markHealthy()
}

// Del deletes one or more keys. Returns the number actually removed; errors
// are logged and swallowed rather than propagated.
func (s *Store) Del(ctx context.Context, keys ...string) int64 {
	if len(keys) == 0 {
		return 0
	}
	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		s.markDegraded(err)
		return 0
	}
	s.markHealthy()
	return n
}

// Scan enumerates all keys matching pattern, looping a cursor-based SCAN to
// exhaustion in bounded batches. This is the only enumeration primitive used
// anywhere in sqldb-go — a full-keyspace KEYS call is never issued on the hot
// path (spec §4.C).
func (s *Store) Scan(ctx context.Context, pattern string) ([]string, error) {
	var (
		cursor uint64
		out    []string
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			s.markDegraded(err)
			return out, nil
		}
		out = append(out, keys...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	s.markHealthy()
	return out, nil
}

// Ping reports whether the store currently answers.
func (s *Store) Ping(ctx context.Context) error {
	err := s.client.Ping(ctx).Err()
	if err != nil {
		s.markDegraded(err)
		return err
	}
	s.markHealthy()
	return nil
}

// Healthy reports the last observed health state without making a network
// call — cheap enough for a hot-path guard before optional work (like
// warming) that would be wasted against a down store.
func (s *Store) Healthy() bool {
	return s.healthy.Load() == 1
}

// Client exposes the underlying *redis.Client for components that need the
// structured commands (GEOADD, ZADD, ZINTERSTORE, ...) spec §6 requires and
// that a flat get/set/del/scan abstraction can't express without losing
// their atomicity/pipelining.
func (s *Store) Client() *redis.Client {
	return s.client
}

func (s *Store) markDegraded(err error) {
	s.healthy.Store(0)
	debug.Logf("cachestore: degraded: %v", err)
}

func (s *Store) markHealthy() {
	s.healthy.Store(1)
}
