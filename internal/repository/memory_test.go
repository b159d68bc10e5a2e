package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAvailabilityCache(t *testing.T) {
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		cache := NewMemoryAvailabilityCache(time.Hour)
		availability := testAvailability(1, "2025-03-10")

		require.NoError(t, cache.Set(ctx, availability))

		got, err := cache.Get(ctx, 1, "2025-03-10")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, availability.CoachID, got.CoachID)
	})

	t.Run("GetMiss", func(t *testing.T) {
		cache := NewMemoryAvailabilityCache(time.Hour)
		got, err := cache.Get(ctx, 1, "2025-03-10")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Invalidate", func(t *testing.T) {
		cache := NewMemoryAvailabilityCache(time.Hour)
		require.NoError(t, cache.Set(ctx, testAvailability(2, "2025-03-11")))
		require.NoError(t, cache.Invalidate(ctx, 2, "2025-03-11"))

		got, err := cache.Get(ctx, 2, "2025-03-11")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Expiry", func(t *testing.T) {
		cache := NewMemoryAvailabilityCache(time.Millisecond)
		require.NoError(t, cache.Set(ctx, testAvailability(3, "2025-03-12")))

		time.Sleep(5 * time.Millisecond)

		got, err := cache.Get(ctx, 3, "2025-03-12")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
