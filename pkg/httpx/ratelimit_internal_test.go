package httpx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuckets_SweepsIdleKeys(t *testing.T) {
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	b := newBuckets(RateLimitConfig{RequestsPerWindow: 60, Window: time.Minute, Burst: 1})
	b.now = func() time.Time { return now }
	b.nextSweep = now.Add(b.idleAfter)

	ok, _ := b.take("ward-a")
	require.True(t, ok)

	ok, wait := b.take("ward-a")
	require.False(t, ok)
	require.InDelta(t, time.Second.Seconds(), wait.Seconds(), 0.01)

	now = now.Add(30 * time.Second)
	ok, _ = b.take("ward-b")
	require.True(t, ok)
	require.Len(t, b.byKey, 2)

	// ward-a has been idle past idleAfter, ward-b has not.
	now = now.Add(b.idleAfter - 15*time.Second)
	ok, _ = b.take("ward-c")
	require.True(t, ok)
	require.NotContains(t, b.byKey, "ward-a")
	require.Contains(t, b.byKey, "ward-b")
	require.Contains(t, b.byKey, "ward-c")
}
