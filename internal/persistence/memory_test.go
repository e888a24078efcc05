package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	t.Run("LoadEmpty", func(t *testing.T) {
		snap, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Nil(t, snap)
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		snap := sampleSnapshot()
		require.NoError(t, s.Save(ctx, snap))

		got, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, snap.Bookings, got.Bookings)
	})

	t.Run("LoadReturnsCopy", func(t *testing.T) {
		got, err := s.Load(ctx)
		require.NoError(t, err)
		got.Bookings[0].GuestName = "mutated"

		again, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Marie Dubois", again.Bookings[0].GuestName)
	})
}
