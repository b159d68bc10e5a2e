package service

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtbook/internal/database"
	"courtbook/internal/events"
	"courtbook/internal/models"
	"courtbook/internal/scheduling"
)

func newScheduleService(t *testing.T) (*ScheduleService, *database.DB, *fakeSyncWorker, *events.EventBus) {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	bus := events.NewEventBus()
	worker := &fakeSyncWorker{}
	gen := scheduling.NewGenerator(db, logger, 0)
	svc := NewScheduleService(db, gen, bus, worker, nil, []string{"admin-1"}, &logger)
	return svc, db, worker, bus
}

func TestIsManager(t *testing.T) {
	svc, _, _, _ := newScheduleService(t)
	assert.True(t, svc.IsManager("admin-1"))
	assert.False(t, svc.IsManager("player-1"))
	assert.False(t, svc.IsManager(""))
}

func TestScheduleCRUD(t *testing.T) {
	svc, db, _, _ := newScheduleService(t)
	ctx := context.Background()

	require.NoError(t, db.CreateOrUpdateCoach(ctx, &models.Coach{ID: 1, Name: "Petrov", BranchID: 1, IsActive: true}))

	sched := &models.CoachSchedule{
		CoachID:        1,
		Weekday:        time.Wednesday,
		StartTime:      "10:00",
		EndTime:        "12:00",
		SessionMinutes: 60,
		IsAvailable:    true,
	}
	require.NoError(t, svc.CreateSchedule(ctx, sched))
	require.NotZero(t, sched.ID)

	t.Run("rejects invalid schedule", func(t *testing.T) {
		err := svc.CreateSchedule(ctx, &models.CoachSchedule{
			CoachID: 1, Weekday: time.Friday,
			StartTime: "12:00", EndTime: "10:00", SessionMinutes: 60,
		})
		assert.Error(t, err)
	})

	t.Run("list", func(t *testing.T) {
		schedules, err := svc.ListSchedules(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, schedules, 1)

		all, err := svc.ListSchedules(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("update", func(t *testing.T) {
		sched.EndTime = "13:00"
		require.NoError(t, svc.UpdateSchedule(ctx, sched))

		schedules, err := svc.ListSchedules(ctx, 1)
		require.NoError(t, err)
		require.Len(t, schedules, 1)
		assert.Equal(t, "13:00", schedules[0].EndTime)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, svc.DeleteSchedule(ctx, sched.ID))
		schedules, err := svc.ListSchedules(ctx, 1)
		require.NoError(t, err)
		assert.Empty(t, schedules)
	})
}

func TestRegeneratePublishesAndMirrors(t *testing.T) {
	svc, db, worker, bus := newScheduleService(t)
	ctx := context.Background()

	require.NoError(t, db.CreateOrUpdateCoach(ctx, &models.Coach{ID: 1, Name: "Petrov", BranchID: 1, IsActive: true}))
	require.NoError(t, svc.CreateSchedule(ctx, &models.CoachSchedule{
		CoachID: 1, Weekday: time.Monday,
		StartTime: "09:00", EndTime: "11:00", SessionMinutes: 60, IsAvailable: true,
	}))

	var got events.RegenerationEventPayload
	var fired bool
	bus.Subscribe(events.EventSlotsRegenerated, func(e *events.Event) error {
		fired = true
		return json.Unmarshal(e.Payload, &got)
	})

	monday := nextMonday()
	report, err := svc.Regenerate(ctx, 1, monday, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Created)

	assert.True(t, fired)
	assert.Equal(t, report.From, got.From)
	assert.Equal(t, report.Created, got.Created)
	assert.Equal(t, 1, worker.ranges)
}
