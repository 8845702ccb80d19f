package hmssdk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := NewMemoryStore()

	_, err := s.Get(ctx)
	require.ErrorIs(t, err, ErrNoToken)

	require.NoError(t, s.Set(ctx, "X"))
	token, err := s.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "X", token)

	require.NoError(t, s.Set(ctx, "Y"))
	token, err = s.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "Y", token)

	require.NoError(t, s.Remove(ctx))
	_, err = s.Get(ctx)
	require.ErrorIs(t, err, ErrNoToken)

	// Removing an empty slot is fine.
	require.NoError(t, s.Remove(ctx))
}
