package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aussiebroadwan/hms/pkg/hmssdk"
	"github.com/aussiebroadwan/hms/pkg/jwtx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, slot string) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewStore(client, "", slot), mr
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t, "")

	require.NoError(t, s.Ping(ctx))

	_, err := s.Get(ctx)
	require.ErrorIs(t, err, hmssdk.ErrNoToken)

	require.NoError(t, s.Set(ctx, "X"))
	token, err := s.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "X", token)

	// Opaque tokens are kept without expiry.
	require.Zero(t, mr.TTL(DefaultPrefix+DefaultSlot))

	require.NoError(t, s.Remove(ctx))
	_, err = s.Get(ctx)
	require.ErrorIs(t, err, hmssdk.ErrNoToken)
}

func TestStore_ExpiresWithToken(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t, "ward-3")

	signer, err := jwtx.NewSignerHS256([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	token, err := signer.Sign(jwtx.NewAccessClaims("u-1", "alice", "Alice", "nurse", time.Hour, "hms", time.Now()))
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, token))

	ttl := mr.TTL(DefaultPrefix + "ward-3")
	require.InDelta(t, time.Hour.Seconds(), ttl.Seconds(), 2)

	mr.FastForward(time.Hour + time.Second)
	_, err = s.Get(ctx)
	require.ErrorIs(t, err, hmssdk.ErrNoToken)
}

func TestStore_ExpiredTokenIsNotKept(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t, "ward-4")
	key := DefaultPrefix + "ward-4"

	signer, err := jwtx.NewSignerHS256([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	sign := func(ttl time.Duration) string {
		token, err := signer.Sign(jwtx.NewAccessClaims("u-1", "alice", "Alice", "nurse", ttl, "hms", time.Now()))
		require.NoError(t, err)
		return token
	}

	require.NoError(t, s.Set(ctx, sign(time.Hour)))
	require.True(t, mr.Exists(key))

	// Overwriting with a dead token clears the slot rather than storing it forever.
	require.NoError(t, s.Set(ctx, sign(-time.Hour)))
	require.False(t, mr.Exists(key))

	_, err = s.Get(ctx)
	require.ErrorIs(t, err, hmssdk.ErrNoToken)

	require.NoError(t, s.Set(ctx, sign(500*time.Millisecond)))
	require.False(t, mr.Exists(key))

	mr.FastForward(1000 * time.Hour)
	_, err = s.Get(ctx)
	require.ErrorIs(t, err, hmssdk.ErrNoToken)
}

func TestStore_SlotsAreIsolated(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	a := NewStore(client, "test:", "a")
	b := NewStore(client, "test:", "b")

	require.NoError(t, a.Set(ctx, "token-a"))
	_, err := b.Get(ctx)
	require.ErrorIs(t, err, hmssdk.ErrNoToken)
}

func TestNewStoreFromURL(t *testing.T) {
	_, err := NewStoreFromURL("not-a-url", "", "")
	require.Error(t, err)

	mr := miniredis.RunT(t)
	s, err := NewStoreFromURL("redis://"+mr.Addr()+"/0", "", "")
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Ping(context.Background()))
}

func TestStore_ServerDown(t *testing.T) {
	s, mr := newTestStore(t, "")
	mr.Close()

	_, err := s.Get(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, hmssdk.ErrNoToken)
}
