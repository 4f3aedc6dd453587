package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiter_AllowPerKey(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0)
	l := New(Config{RPS: 1, Burst: 2})
	l.now = func() time.Time { return now }

	require.True(t, l.Allow("u1"))
	require.True(t, l.Allow("u1"))
	require.False(t, l.Allow("u1"), "burst exhausted")
	require.True(t, l.Allow("u2"), "other users keep their own bucket")

	now = now.Add(time.Second)
	require.True(t, l.Allow("u1"), "one token refilled")
	require.False(t, l.Allow("u1"))
}

func TestLimiter_Unlimited(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	for i := 0; i < 100; i++ {
		require.True(t, l.Allow("u1"))
	}
}

func TestLimiter_EvictsIdleKeys(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0)
	l := New(Config{RPS: 1, Burst: 1, IdleTTL: time.Minute})
	l.now = func() time.Time { return now }

	l.Allow("u1")
	l.Allow("u2")
	require.Equal(t, 2, tracked(l))

	now = now.Add(2 * time.Minute)
	l.Allow("u3")
	require.Equal(t, 1, tracked(l))
}

func tracked(l *Limiter) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
