package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"courtbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, coachID int64, date string) (*models.DayAvailability, error) {
	args := m.Called(ctx, coachID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DayAvailability), args.Error(1)
}

func (m *mockCache) Set(ctx context.Context, availability *models.DayAvailability) error {
	args := m.Called(ctx, availability)
	return args.Error(0)
}

func (m *mockCache) Invalidate(ctx context.Context, coachID int64, date string) error {
	args := m.Called(ctx, coachID, date)
	return args.Error(0)
}

func TestFailoverAvailabilityCache(t *testing.T) {
	primary := new(mockCache)
	fallback := new(mockCache)
	logger := zerolog.New(io.Discard)
	cache := NewFailoverAvailabilityCache(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		availability := testAvailability(1, "2025-03-10")
		primary.On("Get", ctx, int64(1), "2025-03-10").Return(availability, nil).Once()

		got, err := cache.Get(ctx, 1, "2025-03-10")
		assert.NoError(t, err)
		assert.Equal(t, availability, got)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		availability := testAvailability(2, "2025-03-10")
		primary.On("Get", ctx, int64(2), "2025-03-10").Return(nil, errors.New("fail")).Once()
		fallback.On("Get", ctx, int64(2), "2025-03-10").Return(availability, nil).Once()

		got, err := cache.Get(ctx, 2, "2025-03-10")
		assert.NoError(t, err)
		assert.Equal(t, availability, got)
		assert.True(t, cache.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		cache.isDown.Store(true)
		cache.lastCheck = time.Now().Add(-2 * time.Minute)

		availability := testAvailability(3, "2025-03-10")
		primary.On("Get", ctx, int64(3), "2025-03-10").Return(availability, nil).Once()

		got, err := cache.Get(ctx, 3, "2025-03-10")
		assert.NoError(t, err)
		assert.Equal(t, availability, got)
		assert.False(t, cache.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("RecoveryAttemptFail", func(t *testing.T) {
		cache.isDown.Store(true)
		cache.lastCheck = time.Now().Add(-2 * time.Minute)

		primary.On("Get", ctx, int64(33), "2025-03-10").Return(nil, errors.New("still fail")).Once()
		fallback.On("Get", ctx, int64(33), "2025-03-10").Return(nil, nil).Once()

		_, err := cache.Get(ctx, 33, "2025-03-10")
		assert.NoError(t, err)
		assert.True(t, cache.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("SetSuccess", func(t *testing.T) {
		cache.isDown.Store(false)
		availability := testAvailability(77, "2025-03-10")
		primary.On("Set", ctx, availability).Return(nil).Once()

		err := cache.Set(ctx, availability)
		assert.NoError(t, err)
		primary.AssertExpectations(t)
	})

	t.Run("InvalidateBothSides", func(t *testing.T) {
		cache.isDown.Store(false)
		primary.On("Invalidate", ctx, int64(88), "2025-03-10").Return(nil).Once()
		fallback.On("Invalidate", ctx, int64(88), "2025-03-10").Return(nil).Once()

		err := cache.Invalidate(ctx, 88, "2025-03-10")
		assert.NoError(t, err)
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})
}
