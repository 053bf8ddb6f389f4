package redis

import (
	"context"
	"fmt"
	"time"
)

// Scope separates rate-limit budgets. Chat turns hold a provider stream
// open for their whole duration, so they get a tighter budget than plain
// API requests.
type Scope string

const (
	ScopeAPI  Scope = "api"
	ScopeChat Scope = "chat"
)

// Quota is the outcome of one rate-limit check
type Quota struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RateLimiter enforces fixed per-minute windows per scope and client.
// The window start is part of the Redis key, so counters never leak
// between windows and stale keys simply expire.
type RateLimiter struct {
	client        *Client
	apiPerMinute  int
	chatPerMinute int
	burst         int
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *Client, apiPerMinute, chatPerMinute, burst int) *RateLimiter {
	return &RateLimiter{
		client:        client,
		apiPerMinute:  apiPerMinute,
		chatPerMinute: chatPerMinute,
		burst:         burst,
	}
}

// Allow counts one request against the scope's current window
func (r *RateLimiter) Allow(ctx context.Context, scope Scope, key string) (Quota, error) {
	window := time.Now().Truncate(time.Minute)
	redisKey := windowKey(scope, key, window)

	count, err := r.client.rdb.Incr(ctx, redisKey).Result()
	if err != nil {
		return Quota{}, fmt.Errorf("failed to count rate limit window: %w", err)
	}
	if count == 1 {
		// Keys outlive their window by one minute so a clock skewed
		// client cannot resurrect an expired counter.
		r.client.rdb.Expire(ctx, redisKey, 2*time.Minute)
	}

	limit := int64(r.limitFor(scope))
	remaining := int(limit - count)
	if remaining < 0 {
		remaining = 0
	}

	return Quota{
		Allowed:   count <= limit,
		Remaining: remaining,
		ResetAt:   window.Add(time.Minute),
	}, nil
}

func (r *RateLimiter) limitFor(scope Scope) int {
	if scope == ScopeChat {
		return r.chatPerMinute
	}
	return r.apiPerMinute + r.burst
}

func windowKey(scope Scope, key string, window time.Time) string {
	return fmt.Sprintf("ratelimit:%s:%s:%d", scope, key, window.Unix())
}
