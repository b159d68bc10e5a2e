package repository

import (
	"context"
	"sync"
	"time"

	"courtbook/internal/models"
)

type MemoryAvailabilityCache struct {
	entries sync.Map
	ttl     time.Duration
}

type cacheEntry struct {
	availability *models.DayAvailability
	expiresAt    time.Time
}

func NewMemoryAvailabilityCache(ttl time.Duration) *MemoryAvailabilityCache {
	if ttl <= 0 {
		ttl = models.AvailabilityCacheTTL * time.Second
	}
	return &MemoryAvailabilityCache{
		ttl: ttl,
	}
}

func (r *MemoryAvailabilityCache) Get(ctx context.Context, coachID int64, date string) (*models.DayAvailability, error) {
	key := availabilityKey(coachID, date)
	val, ok := r.entries.Load(key)
	if !ok {
		return nil, nil
	}
	entry := val.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		r.entries.Delete(key)
		return nil, nil
	}
	return entry.availability, nil
}

func (r *MemoryAvailabilityCache) Set(ctx context.Context, availability *models.DayAvailability) error {
	key := availabilityKey(availability.CoachID, availability.Date)
	r.entries.Store(key, &cacheEntry{
		availability: availability,
		expiresAt:    time.Now().Add(r.ttl),
	})
	return nil
}

func (r *MemoryAvailabilityCache) Invalidate(ctx context.Context, coachID int64, date string) error {
	r.entries.Delete(availabilityKey(coachID, date))
	return nil
}
