// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package ratelimit implements the fixed-window login limiter. Counters
// live behind the Store interface so a single process can keep them in
// memory while several instances share them through Redis.
package ratelimit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"
)

// Login limiter defaults.
const (
	DefaultLimit  = 5
	DefaultWindow = 15 * time.Minute
)

// Store counts hits per key inside fixed windows.
// Implementations must be safe for concurrent use.
type Store interface {
	// Hit increments the counter for key. The first hit opens a window of
	// the given length; count is the number of hits in the current window
	// and resetIn the time until it closes.
	Hit(ctx context.Context, key string, window time.Duration) (count int64, resetIn time.Duration, err error)

	// Reset forgets key.
	Reset(ctx context.Context, key string) error
}

// Config holds limiter settings.
type Config struct {
	Limit  int
	Window time.Duration
	// Secret keys the fingerprint hash so stored keys do not reveal
	// client addresses.
	Secret []byte
}

// Limiter admits at most Limit hits per fingerprint per Window.
type Limiter struct {
	store  Store
	limit  int64
	window time.Duration
	secret []byte
}

// New creates a limiter backed by store. Zero config values take the
// login defaults.
func New(store Store, cfg Config) *Limiter {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return &Limiter{
		store:  store,
		limit:  int64(cfg.Limit),
		window: cfg.Window,
		secret: cfg.Secret,
	}
}

// Fingerprint derives the counter key for a client from its IP address
// and User-Agent.
func (l *Limiter) Fingerprint(ip, userAgent string) string {
	mac := hmac.New(sha256.New, l.secret)
	mac.Write([]byte(ip + "|" + userAgent))
	return "login:" + hex.EncodeToString(mac.Sum(nil))
}

// Allow records a hit for key and reports whether it is within the limit.
// When it is not, retryAfter is the time left in the window. Store errors
// are logged and the request is let through.
func (l *Limiter) Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration) {
	count, resetIn, err := l.store.Hit(ctx, key, l.window)
	if err != nil {
		slog.Error("rate limit store unavailable, allowing request", "error", err)
		return true, 0
	}
	if count > l.limit {
		if resetIn <= 0 {
			resetIn = time.Second
		}
		return false, resetIn
	}
	return true, 0
}

// Reset clears the counter for key.
func (l *Limiter) Reset(ctx context.Context, key string) {
	if err := l.store.Reset(ctx, key); err != nil {
		slog.Warn("failed to reset rate limit counter", "error", err)
	}
}
