package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_Window(t *testing.T) {
	ctx := context.Background()
	rl := NewMemoryLimiter(10*time.Minute, 3)
	now := time.Now()
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "phone:+1")
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i+1)
	}
	ok, _ := rl.Allow(ctx, "phone:+1")
	assert.False(t, ok)

	ok, _ = rl.Allow(ctx, "phone:+2")
	assert.True(t, ok, "keys are independent")

	now = now.Add(10*time.Minute + time.Second)
	ok, _ = rl.Allow(ctx, "phone:+1")
	assert.True(t, ok, "window slid past earlier requests")
}

func TestMemoryLimiter_Prune(t *testing.T) {
	rl := NewMemoryLimiter(time.Minute, 1)
	now := time.Now()
	rl.now = func() time.Time { return now }

	_, _ = rl.Allow(context.Background(), "a")
	now = now.Add(2 * time.Minute)
	rl.prune()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Empty(t, rl.requests)
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisLimiter_FixedWindow(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	rl := NewRedisLimiter(client, "otp:issue:", 10*time.Minute, 3)

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, PhoneKey("+27821234567"))
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i+1)
	}
	ok, err := rl.Allow(ctx, PhoneKey("+27821234567"))
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 10*time.Minute, mr.TTL("otp:issue:phone:+27821234567"))

	mr.FastForward(10*time.Minute + time.Second)
	ok, err = rl.Allow(ctx, PhoneKey("+27821234567"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLimiter_Unavailable(t *testing.T) {
	mr, client := newRedis(t)
	rl := NewRedisLimiter(client, "", time.Minute, 1)
	mr.Close()

	_, err := rl.Allow(context.Background(), "k")
	assert.Error(t, err)
}

func ExamplePhoneKey() {
	fmt.Println(PhoneKey("+27821234567"))
	// Output: phone:+27821234567
}
