package database

import (
	"context"
	"sync"
	"testing"
	"time"

	"courtbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Exactly one of N concurrent claims for the same slot may win; everyone
// else gets the guard failure. The affected-row count of the conditional
// update is the only authority.
func TestConcurrentClaim(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	date := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	slot := insertOne(t, db, makeSlot(1, date, "16:30", "17:15"))

	const numGoroutines = 10
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	results := make(chan error, numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			_, err := db.ClaimSlot(ctx, slot.ID, models.MinutesClock(id), "ref")
			results <- err
		}(i)
	}

	wg.Wait()
	close(results)

	successCount := 0
	conflictCount := 0
	for err := range results {
		switch {
		case err == nil:
			successCount++
		default:
			assert.ErrorIs(t, err, ErrSlotNotAvailable)
			conflictCount++
		}
	}

	assert.Equal(t, 1, successCount, "exactly one claim should win")
	assert.Equal(t, numGoroutines-1, conflictCount)

	got, err := db.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SlotStatusPending, got.Status)
	assert.NotEmpty(t, got.PlayerID)
}

// Two concurrent inserts for the same (coach, date, start) collapse into one
// winner through the partial unique index.
func TestConcurrentCreateClaimed(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	date := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

	const numGoroutines = 8
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	results := make(chan error, numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			slot := makeSlot(3, date, "10:00", "10:45")
			slot.PlayerID = models.MinutesClock(id)
			results <- db.CreateClaimedSlot(ctx, &slot)
		}(i)
	}

	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		if err == nil {
			successCount++
		} else {
			assert.ErrorIs(t, err, ErrSlotNotAvailable)
		}
	}
	assert.Equal(t, 1, successCount, "exactly one insert should win")

	slots, err := db.GetSlotsForDay(ctx, 3, date)
	require.NoError(t, err)
	assert.Len(t, slots, 1)
}
