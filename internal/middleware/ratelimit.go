// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/olegiv/province-cms/internal/apperror"
	"github.com/olegiv/province-cms/internal/endpoint"
	"github.com/olegiv/province-cms/internal/util"
)

// maxTrackedClients bounds the limiter map; it is reset when exceeded.
const maxTrackedClients = 10000

// limiterCache is a generic rate limiter cache with double-check locking.
type limiterCache[K comparable] struct {
	limiters map[K]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

func newLimiterCache[K comparable](rps float64, burst int) *limiterCache[K] {
	return &limiterCache[K]{
		limiters: make(map[K]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

// get returns the rate limiter for a specific key, creating one if needed.
func (lc *limiterCache[K]) get(key K) *rate.Limiter {
	lc.mu.RLock()
	limiter, exists := lc.limiters[key]
	lc.mu.RUnlock()

	if exists {
		return limiter
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists = lc.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(lc.rate, lc.burst)
	lc.limiters[key] = limiter
	return limiter
}

// clearIfExceeds clears all entries if the cache exceeds maxSize.
func (lc *limiterCache[K]) clearIfExceeds(maxSize int) bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if len(lc.limiters) > maxSize {
		lc.limiters = make(map[K]*rate.Limiter)
		return true
	}
	return false
}

func (lc *limiterCache[K]) len() int {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	return len(lc.limiters)
}

// GlobalRateLimiter is a token bucket per client IP in front of the whole
// API. It is a flood guard; login attempts have their own fixed window.
type GlobalRateLimiter struct {
	cache     *limiterCache[string]
	rps       float64
	responder endpoint.Responder
}

// NewGlobalRateLimiter creates a limiter allowing rps requests per second
// per IP with the given burst.
func NewGlobalRateLimiter(rps float64, burst int, responder endpoint.Responder) *GlobalRateLimiter {
	return &GlobalRateLimiter{
		cache:     newLimiterCache[string](rps, burst),
		rps:       rps,
		responder: responder,
	}
}

// Middleware returns the rate limiting middleware.
func (rl *GlobalRateLimiter) Middleware() func(http.Handler) http.Handler {
	retry := time.Second
	if rl.rps > 0 && rl.rps < 1 {
		retry = time.Duration(float64(time.Second) / rl.rps)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := util.ClientIP(r)
			if !rl.cache.get(ip).Allow() {
				slog.WarnContext(r.Context(), "api rate limit exceeded", "ip", ip, "path", r.URL.Path)
				rl.responder.Error(w, r, apperror.RateLimited("Too many requests. Please slow down.", retry))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Sweep drops all per-IP state once too many clients are tracked. It
// returns the number of limiters still held.
func (rl *GlobalRateLimiter) Sweep() int {
	if rl.cache.clearIfExceeds(maxTrackedClients) {
		slog.Info("api rate limiter state reset", "limit", maxTrackedClients)
	}
	return rl.cache.len()
}
