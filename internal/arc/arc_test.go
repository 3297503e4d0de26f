package arc

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/animus/internal/decay"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	// Unknown session yields a fresh state, not an error.
	got, err := s.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, decay.NewArcState(), got)

	state := decay.ArcState{Phase: decay.PhaseApex, Momentum: 0.85, Messages: 7}
	require.NoError(t, s.Put(ctx, "sess-1", state))

	got, err = s.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, state, got)

	require.NoError(t, s.Delete(ctx, "sess-1"))
	got, err = s.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, decay.NewArcState(), got, "deleted session starts fresh")
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisStore(mr.Addr())
	ctx := context.Background()

	got, err := s.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, decay.NewArcState(), got, "missing key yields a fresh state")

	state := decay.ArcState{Phase: decay.PhaseFalling, Momentum: 0.4, Messages: 12}
	require.NoError(t, s.Put(ctx, "sess-1", state))

	got, err = s.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, state, got)

	// Keys carry a TTL so abandoned sessions evaporate.
	ttl := mr.TTL("animus:arc:sess-1")
	assert.Greater(t, ttl.Hours(), 0.0)

	require.NoError(t, s.Delete(ctx, "sess-1"))
	got, err = s.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, decay.NewArcState(), got)
}

func TestRedisStoreCorruptPayload(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisStore(mr.Addr())

	require.NoError(t, mr.Set("animus:arc:sess-1", "not json"))
	got, err := s.Get(context.Background(), "sess-1")
	assert.Error(t, err)
	assert.Equal(t, decay.NewArcState(), got, "corrupt payload degrades to a fresh state")
}
