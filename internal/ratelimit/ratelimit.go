// Package ratelimit provides a Redis-backed fixed-window rate limiter used to
// cap license validation attempts per license.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrInvalidLimit    = errors.New("invalid limit")
	ErrInvalidInterval = errors.New("invalid interval")
	ErrKeyRequired     = errors.New("key is required")
)

// Limiter counts hits per key in fixed windows. The counter key carries the
// window's TTL, so idle keys expire on their own.
type Limiter struct {
	client *redis.Client
	prefix string
	limit  int64
	window time.Duration
}

// New creates a fixed-window limiter allowing limit hits per window.
func New(client *redis.Client, prefix string, limit int64, window time.Duration) (*Limiter, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	if window <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInterval, window)
	}

	return &Limiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
	}, nil
}

// Allow reports whether the key has budget left in the current window.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrKeyRequired
	}

	counterKey := l.prefix + ":" + key

	pipe := l.client.TxPipeline()
	count := pipe.Incr(ctx, counterKey)
	// NX keeps the original window's deadline across increments.
	pipe.ExpireNX(ctx, counterKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit check: %w", err)
	}

	return count.Val() <= l.limit, nil
}

// Reset clears the counter for a key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if key == "" {
		return ErrKeyRequired
	}
	return l.client.Del(ctx, l.prefix+":"+key).Err()
}
