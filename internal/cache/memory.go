// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"
)

// MemoryCache keeps entries in process. It serves single-instance
// deployments and tests.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	defaultTTL time.Duration
	now        func() time.Time

	stop   chan struct{}
	closed bool
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

// A zero expiresAt never expires.
func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryCacheOptions configures the memory cache.
type MemoryCacheOptions struct {
	DefaultTTL      time.Duration // 0 keeps entries until deleted
	CleanupInterval time.Duration // 0 disables background cleanup
	Now             func() time.Time
}

// NewMemoryCache creates a memory cache.
func NewMemoryCache(opts MemoryCacheOptions) *MemoryCache {
	c := &MemoryCache{
		entries:    make(map[string]entry),
		defaultTTL: opts.DefaultTTL,
		now:        opts.Now,
		stop:       make(chan struct{}),
	}
	if c.now == nil {
		c.now = time.Now
	}
	if opts.CleanupInterval > 0 {
		go c.sweepEvery(opts.CleanupInterval)
	}
	return c
}

// Get implements Cache. The returned slice is a copy.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, ErrCacheClosed
	}
	e, ok := c.entries[key]
	if !ok || e.expired(c.now()) {
		return nil, ErrCacheMiss
	}
	return slices.Clone(e.value), nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrCacheClosed
	}
	e := entry{value: slices.Clone(value)}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = e
	return nil
}

// Delete implements Cache.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrCacheClosed
	}
	delete(c.entries, key)
	return nil
}

// Ping reports whether the cache is usable.
func (c *MemoryCache) Ping(context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrCacheClosed
	}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the sweeper and drops every entry.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.stop)
		clear(c.entries)
	}
	return nil
}

// sweep removes expired entries and returns how many were removed.
func (c *MemoryCache) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	before := len(c.entries)
	maps.DeleteFunc(c.entries, func(_ string, e entry) bool { return e.expired(now) })
	return before - len(c.entries)
}

func (c *MemoryCache) sweepEvery(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

var _ Cache = (*MemoryCache)(nil)
