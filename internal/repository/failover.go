package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"courtbook/internal/domain"
	"courtbook/internal/models"

	"github.com/rs/zerolog"
)

// FailoverAvailabilityCache serves from the primary cache until it fails,
// then falls back to the in-memory one and probes the primary once a minute.
type FailoverAvailabilityCache struct {
	primary   domain.AvailabilityCache
	fallback  domain.AvailabilityCache
	logger    *zerolog.Logger
	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverAvailabilityCache(primary, fallback domain.AvailabilityCache, logger *zerolog.Logger) *FailoverAvailabilityCache {
	return &FailoverAvailabilityCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverAvailabilityCache) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary availability cache failed, falling back to memory")
	r.isDown.Store(true)
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
}

// shouldProbe reports whether it is time to retry the primary.
func (r *FailoverAvailabilityCache) shouldProbe() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.lastCheck) < time.Minute {
		return false
	}
	r.lastCheck = time.Now()
	return true
}

func (r *FailoverAvailabilityCache) Get(ctx context.Context, coachID int64, date string) (*models.DayAvailability, error) {
	if !r.isDown.Load() {
		availability, err := r.primary.Get(ctx, coachID, date)
		if err == nil {
			return availability, nil
		}
		r.markDown(err)
	} else if r.shouldProbe() {
		availability, err := r.primary.Get(ctx, coachID, date)
		if err == nil {
			r.isDown.Store(false)
			return availability, nil
		}
	}

	return r.fallback.Get(ctx, coachID, date)
}

func (r *FailoverAvailabilityCache) Set(ctx context.Context, availability *models.DayAvailability) error {
	if !r.isDown.Load() {
		err := r.primary.Set(ctx, availability)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.Set(ctx, availability)
}

func (r *FailoverAvailabilityCache) Invalidate(ctx context.Context, coachID int64, date string) error {
	// Инвалидируем оба, чтобы после восстановления не отдать протухшее
	var primaryErr error
	if !r.isDown.Load() {
		if primaryErr = r.primary.Invalidate(ctx, coachID, date); primaryErr != nil {
			r.markDown(primaryErr)
		}
	}
	if err := r.fallback.Invalidate(ctx, coachID, date); err != nil {
		return err
	}
	return primaryErr
}
