package redis

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterScopeBudgets(t *testing.T) {
	limiter := &RateLimiter{apiPerMinute: 60, chatPerMinute: 10, burst: 10}

	// Burst headroom applies to plain API traffic only; chat turns get
	// their own strict budget.
	assert.Equal(t, 70, limiter.limitFor(ScopeAPI))
	assert.Equal(t, 10, limiter.limitFor(ScopeChat))
}

func TestRateLimiterWindowKeys(t *testing.T) {
	window := time.Date(2026, 8, 24, 10, 30, 0, 0, time.UTC)
	next := window.Add(time.Minute)

	// Scopes and windows never share a counter.
	assert.NotEqual(t,
		windowKey(ScopeAPI, "10.0.0.1:1234", window),
		windowKey(ScopeChat, "10.0.0.1:1234", window),
	)
	assert.NotEqual(t,
		windowKey(ScopeAPI, "10.0.0.1:1234", window),
		windowKey(ScopeAPI, "10.0.0.1:1234", next),
	)
	assert.Equal(t,
		fmt.Sprintf("ratelimit:chat:10.0.0.1:1234:%d", window.Unix()),
		windowKey(ScopeChat, "10.0.0.1:1234", window))
}
