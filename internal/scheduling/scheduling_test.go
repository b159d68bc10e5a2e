package scheduling

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtbook/internal/database"
	"courtbook/internal/models"
)

// 2025-03-10 is a Monday.
var monday = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedCoach(t *testing.T, db *database.DB, id int64) *models.Coach {
	t.Helper()
	coach := &models.Coach{ID: id, Name: "Coach", BranchID: 1, IsActive: true}
	require.NoError(t, db.CreateOrUpdateCoach(context.Background(), coach))
	return coach
}

func seedSchedule(t *testing.T, db *database.DB, coachID int64, weekday time.Weekday, start, end string, session int64) *models.CoachSchedule {
	t.Helper()
	sched := &models.CoachSchedule{
		CoachID:        coachID,
		Weekday:        weekday,
		StartTime:      start,
		EndTime:        end,
		SessionMinutes: session,
		IsAvailable:    true,
	}
	require.NoError(t, db.CreateSchedule(context.Background(), sched))
	return sched
}

func TestExpand(t *testing.T) {
	coach := &models.Coach{ID: 1, BranchID: 3}

	t.Run("subdivides even window", func(t *testing.T) {
		schedules := []models.CoachSchedule{{
			CoachID: 1, Weekday: time.Monday,
			StartTime: "09:00", EndTime: "12:00",
			SessionMinutes: 60, IsAvailable: true,
		}}
		slots := Expand(coach, schedules, monday, 1)
		require.Len(t, slots, 3)
		assert.Equal(t, "09:00", slots[0].StartTime)
		assert.Equal(t, "10:00", slots[0].EndTime)
		assert.Equal(t, "11:00", slots[2].StartTime)
		assert.Equal(t, "12:00", slots[2].EndTime)
		for _, s := range slots {
			assert.Equal(t, models.SlotStatusAvailable, s.Status)
			assert.Equal(t, int64(3), s.BranchID)
			assert.Equal(t, int64(models.DefaultCapacity), s.Capacity)
		}
	})

	t.Run("uneven window emits single slot", func(t *testing.T) {
		schedules := []models.CoachSchedule{{
			CoachID: 1, Weekday: time.Monday,
			StartTime: "09:00", EndTime: "10:30",
			SessionMinutes: 60, IsAvailable: true,
		}}
		slots := Expand(coach, schedules, monday, 1)
		require.Len(t, slots, 1)
		assert.Equal(t, "09:00", slots[0].StartTime)
		assert.Equal(t, "10:30", slots[0].EndTime)
	})

	t.Run("skips unavailable rules", func(t *testing.T) {
		schedules := []models.CoachSchedule{{
			CoachID: 1, Weekday: time.Monday,
			StartTime: "09:00", EndTime: "10:00",
			SessionMinutes: 60, IsAvailable: false,
		}}
		assert.Empty(t, Expand(coach, schedules, monday, 7))
	})

	t.Run("weekday derived from date", func(t *testing.T) {
		schedules := []models.CoachSchedule{
			{CoachID: 1, Weekday: time.Monday, StartTime: "09:00", EndTime: "10:00", SessionMinutes: 60, IsAvailable: true},
			{CoachID: 1, Weekday: time.Thursday, StartTime: "18:00", EndTime: "19:00", SessionMinutes: 60, IsAvailable: true},
		}
		slots := Expand(coach, schedules, monday, 30)
		require.NotEmpty(t, slots)
		for _, s := range slots {
			assert.Equal(t, s.Date.Weekday(), s.Weekday, "slot %s %s", s.Date.Format(models.DateFormat), s.StartTime)
		}
	})
}

func TestRegenerate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	coach := seedCoach(t, db, 1)
	seedSchedule(t, db, coach.ID, time.Monday, "16:00", "18:00", 60)

	gen := NewGenerator(db, zerolog.New(io.Discard), 10)

	report, err := gen.Regenerate(ctx, coach.ID, monday, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Created)
	assert.False(t, report.Partial())

	t.Run("idempotent", func(t *testing.T) {
		again, err := gen.Regenerate(ctx, coach.ID, monday, 7)
		require.NoError(t, err)
		assert.Equal(t, int64(2), again.Deleted)
		assert.Equal(t, 2, again.Created)

		slots, err := db.GetSlotsForDay(ctx, coach.ID, monday)
		require.NoError(t, err)
		assert.Len(t, slots, 2)
	})

	t.Run("claimed slots survive", func(t *testing.T) {
		slot, err := db.FindSlot(ctx, coach.ID, monday, "16:00")
		require.NoError(t, err)
		claimed, err := db.ClaimSlot(ctx, slot.ID, "player-1", "ref-1")
		require.NoError(t, err)

		report, err := gen.Regenerate(ctx, coach.ID, monday, 7)
		require.NoError(t, err)
		assert.False(t, report.Partial())
		assert.Equal(t, int64(1), report.Deleted)
		assert.Equal(t, 1, report.Created)

		kept, err := db.GetSlot(ctx, claimed.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SlotStatusPending, kept.Status)
		assert.Equal(t, "player-1", kept.PlayerID)

		slots, err := db.GetSlotsForDay(ctx, coach.ID, monday)
		require.NoError(t, err)
		assert.Len(t, slots, 2)
		for i := range slots {
			for j := i + 1; j < len(slots); j++ {
				assert.False(t, slots[i].Overlaps(slots[j].StartTime, slots[j].EndTime),
					"slots %d and %d overlap", slots[i].ID, slots[j].ID)
			}
		}
	})

	t.Run("all coaches", func(t *testing.T) {
		other := seedCoach(t, db, 2)
		seedSchedule(t, db, other.ID, time.Tuesday, "10:00", "11:00", 60)

		report, err := gen.Regenerate(ctx, 0, monday, 7)
		require.NoError(t, err)
		assert.Equal(t, 2, report.Created) // coach 1 free slot + coach 2 new slot

		slots, err := db.GetSlotsForDay(ctx, other.ID, monday.AddDate(0, 0, 1))
		require.NoError(t, err)
		assert.Len(t, slots, 1)
	})
}

func TestChecker(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	coach := seedCoach(t, db, 1)
	seedSchedule(t, db, coach.ID, time.Monday, "16:00", "18:00", 60)

	checker := NewChecker(db)

	t.Run("inside free window", func(t *testing.T) {
		assert.NoError(t, checker.Check(ctx, coach.ID, monday, "16:00", "17:00"))
	})

	t.Run("outside schedule", func(t *testing.T) {
		err := checker.Check(ctx, coach.ID, monday, "08:00", "09:00")
		assert.ErrorIs(t, err, ErrOutsideSchedule)

		// Tuesday has no rule at all
		err = checker.Check(ctx, coach.ID, monday.AddDate(0, 0, 1), "16:00", "17:00")
		assert.ErrorIs(t, err, ErrOutsideSchedule)
	})

	t.Run("straddles window edge", func(t *testing.T) {
		err := checker.Check(ctx, coach.ID, monday, "17:30", "18:30")
		assert.ErrorIs(t, err, ErrOutsideSchedule)
	})

	t.Run("conflicts with claimed slot", func(t *testing.T) {
		claimed := &models.Slot{
			CoachID: coach.ID, BranchID: 1, Date: monday, Weekday: time.Monday,
			StartTime: "16:00", EndTime: "17:00", PlayerID: "player-1",
		}
		require.NoError(t, db.CreateClaimedSlot(ctx, claimed))

		err := checker.Check(ctx, coach.ID, monday, "16:30", "17:15")
		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, claimed.ID, conflict.Slot.ID)

		// back-to-back never conflicts
		assert.NoError(t, checker.Check(ctx, coach.ID, monday, "17:00", "18:00"))
	})

	t.Run("cancelled slots never conflict", func(t *testing.T) {
		slot, err := db.FindSlot(ctx, coach.ID, monday, "16:00")
		require.NoError(t, err)
		_, err = db.CancelSlot(ctx, slot.ID)
		require.NoError(t, err)

		err = checker.Check(ctx, coach.ID, monday, "16:00", "17:00")
		assert.NoError(t, err)
	})

	t.Run("invalid window", func(t *testing.T) {
		err := checker.Check(ctx, coach.ID, monday, "17:00", "16:00")
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrOutsideSchedule))
	})
}
