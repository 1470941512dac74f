package ratelimit

import (
	"context"
	"fmt"
	"time"

	"gradehub/internal/common/cache"
	pkgerrors "gradehub/pkg/errors"
)

// Limiter enforces fixed-window request limits using cache counters.
type Limiter struct {
	cache        cache.BasicOps
	window       time.Duration
	cacheTimeout time.Duration
}

// NewLimiter creates a fixed-window limiter. window is the default window
// applied when Allow is called with a non-positive one.
func NewLimiter(cacheClient cache.BasicOps, window time.Duration, cacheTimeout time.Duration) *Limiter {
	if cacheTimeout <= 0 {
		cacheTimeout = time.Second
	}
	return &Limiter{cache: cacheClient, window: window, cacheTimeout: cacheTimeout}
}

// Allow counts one request against key and returns a TooManyRequests error
// once more than max requests have been seen within the window.
func (l *Limiter) Allow(ctx context.Context, key string, max int, window time.Duration) error {
	if l.cache == nil {
		return pkgerrors.New(pkgerrors.ServiceUnavailable).WithMessage("rate limit cache is unavailable")
	}
	if max <= 0 {
		return nil
	}
	if window <= 0 {
		window = l.window
	}

	ctxCache, cancel := context.WithTimeout(ctx, l.cacheTimeout)
	defer cancel()

	acquired, err := l.cache.SetNX(ctxCache, key, 1, window)
	if err != nil {
		return pkgerrors.Wrapf(err, pkgerrors.CacheError, "rate limit check failed")
	}
	var count int64
	if acquired {
		count = 1
	} else {
		count, err = l.cache.Incr(ctxCache, key)
		if err != nil {
			return pkgerrors.Wrapf(err, pkgerrors.CacheError, "rate limit check failed")
		}
		// Heal a counter that lost its expiry.
		ttl, ttlErr := l.cache.TTL(ctxCache, key)
		if ttlErr == nil && ttl <= 0 {
			_ = l.cache.Expire(ctxCache, key, window)
		}
	}
	if int(count) > max {
		return pkgerrors.New(pkgerrors.TooManyRequests).WithMessage(fmt.Sprintf("rate limit exceeded for %s", key))
	}
	return nil
}
