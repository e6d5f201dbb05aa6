package guard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestRateLimiter_AllowsUnderLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result := rl.Check(ctx, "10.0.0.1")
		assert.True(t, result.Allowed, "request %d should be allowed", i+1)
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	ctx := context.Background()

	rl.Check(ctx, "10.0.0.1")
	rl.Check(ctx, "10.0.0.1")
	result := rl.Check(ctx, "10.0.0.1")

	assert.False(t, result.Allowed)
	assert.Equal(t, "rate_limiter", result.Guard)
}

func TestRateLimiter_SeparateKeys(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	ctx := context.Background()

	r1 := rl.Check(ctx, "10.0.0.1")
	r2 := rl.Check(ctx, "10.0.0.2")

	assert.True(t, r1.Allowed)
	assert.True(t, r2.Allowed)
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	rl := NewRateLimiter(1, time.Minute)
	rl.now = clock.now
	ctx := context.Background()

	require.True(t, rl.Check(ctx, "k").Allowed)
	require.False(t, rl.Check(ctx, "k").Allowed)

	clock.advance(time.Minute + time.Second)
	assert.True(t, rl.Check(ctx, "k").Allowed)
}

func TestRateLimiter_Prune(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	rl := NewRateLimiter(5, time.Minute)
	rl.now = clock.now
	ctx := context.Background()

	rl.Check(ctx, "old")
	clock.advance(45 * time.Second)
	rl.Check(ctx, "recent")
	clock.advance(30 * time.Second)

	assert.Equal(t, 1, rl.Prune())
	assert.Len(t, rl.windows, 1)
	assert.Contains(t, rl.windows, "recent")
}

func TestCircuitBreaker_ClosedByDefault(t *testing.T) {
	cb := NewCircuitBreaker(3, 5*time.Second)
	ctx := context.Background()

	result := cb.Check(ctx, "redis")
	assert.True(t, result.Allowed)
	assert.Equal(t, CircuitClosed, cb.State("redis"))
}

func TestCircuitBreaker_OpensOnThreshold(t *testing.T) {
	cb := NewCircuitBreaker(2, 5*time.Second)
	ctx := context.Background()

	cb.Check(ctx, "redis")
	cb.RecordFailure("redis")
	cb.RecordFailure("redis")

	result := cb.Check(ctx, "redis")
	assert.False(t, result.Allowed)
	assert.Equal(t, "circuit_breaker", result.Guard)
	assert.Equal(t, "open", cb.State("redis").String())
}

func TestCircuitBreaker_SuccessResets(t *testing.T) {
	cb := NewCircuitBreaker(2, 5*time.Second)
	ctx := context.Background()

	cb.Check(ctx, "redis")
	cb.RecordFailure("redis")
	cb.RecordSuccess("redis")
	cb.RecordFailure("redis")

	result := cb.Check(ctx, "redis")
	assert.True(t, result.Allowed)
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	cb := NewCircuitBreaker(1, 5*time.Second)
	cb.now = clock.now
	ctx := context.Background()

	cb.RecordFailure("redis")
	require.False(t, cb.Check(ctx, "redis").Allowed)

	clock.advance(6 * time.Second)
	assert.True(t, cb.Check(ctx, "redis").Allowed, "one probe after reset timeout")
	assert.False(t, cb.Check(ctx, "redis").Allowed, "only one probe at a time")
	assert.Equal(t, CircuitHalfOpen, cb.State("redis"))

	cb.RecordFailure("redis")
	assert.Equal(t, CircuitOpen, cb.State("redis"), "failed probe reopens")

	clock.advance(6 * time.Second)
	require.True(t, cb.Check(ctx, "redis").Allowed)
	cb.RecordSuccess("redis")
	assert.Equal(t, CircuitClosed, cb.State("redis"))
	assert.True(t, cb.Check(ctx, "redis").Allowed)
}

func TestCircuitBreaker_KeysAreIndependent(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)
	ctx := context.Background()

	cb.RecordFailure("redis")
	assert.False(t, cb.Check(ctx, "redis").Allowed)
	assert.True(t, cb.Check(ctx, "kafka").Allowed)
}
