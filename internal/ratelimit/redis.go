// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps counters in Redis so every instance sees the same
// windows. INCR and EXPIRE NX run in one transaction: the first hit sets
// the window length and later hits leave it alone.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a store using client. Keys are namespaced with
// prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix + "ratelimit:"}
}

// Hit implements Store.
func (s *RedisStore) Hit(ctx context.Context, key string, length time.Duration) (int64, time.Duration, error) {
	k := s.prefix + key

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, length)
		ttl = pipe.PTTL(ctx, k)
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("rate limit hit: %w", err)
	}

	resetIn := ttl.Val()
	if resetIn < 0 {
		// Key without expiry; repair it so the window can close.
		if err := s.client.Expire(ctx, k, length).Err(); err != nil {
			return 0, 0, fmt.Errorf("rate limit expire: %w", err)
		}
		resetIn = length
	}
	return incr.Val(), resetIn, nil
}

// Reset implements Store.
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}
