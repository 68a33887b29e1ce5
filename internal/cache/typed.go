// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// TypedCache stores values of type T as JSON in a Cache.
type TypedCache[T any] struct {
	cache Cache
	ttl   time.Duration
}

// NewTypedCache wraps cache. A zero ttl uses the cache default.
func NewTypedCache[T any](cache Cache, ttl time.Duration) *TypedCache[T] {
	return &TypedCache[T]{cache: cache, ttl: ttl}
}

// Get returns the cached value for key. Undecodable entries count as misses.
func (c *TypedCache[T]) Get(ctx context.Context, key string) (T, bool) {
	var value T
	data, err := c.cache.Get(ctx, key)
	if err != nil {
		return value, false
	}
	if err := json.Unmarshal(data, &value); err != nil {
		return value, false
	}
	return value, true
}

// Set stores value under key.
func (c *TypedCache[T]) Set(ctx context.Context, key string, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.cache.Set(ctx, key, data, c.ttl)
}

// Delete removes key.
func (c *TypedCache[T]) Delete(ctx context.Context, key string) error {
	return c.cache.Delete(ctx, key)
}

// GetOrSet returns the cached value or computes, stores and returns it.
// A failed store is logged; the computed value is still returned.
func (c *TypedCache[T]) GetOrSet(ctx context.Context, key string, fn func() (T, error)) (T, error) {
	if value, ok := c.Get(ctx, key); ok {
		return value, nil
	}

	value, err := fn()
	if err != nil {
		return value, err
	}

	if err := c.Set(ctx, key, value); err != nil {
		slog.Warn("cache store failed", "key", key, "error", err)
	}
	return value, nil
}
