package worker

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtbook/internal/database"
	"courtbook/internal/models"
)

type fakeMirror struct {
	err          error
	upsertCalls  int
	statusCalls  int
	replaceCalls int
	lastStatus   string
}

func (m *fakeMirror) UpsertSlotRow(_ context.Context, _ *models.Slot) error {
	m.upsertCalls++
	return m.err
}

func (m *fakeMirror) UpdateSlotStatus(_ context.Context, _ int64, status string) error {
	m.statusCalls++
	m.lastStatus = status
	return m.err
}

func (m *fakeMirror) ReplaceScheduleRange(_ context.Context, _, _ time.Time, _ []models.Slot, _ []models.Coach) error {
	m.replaceCalls++
	return m.err
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestWorker(db *database.DB, mirror *fakeMirror, redisClient *redis.Client, retry RetryPolicy) *SyncWorker {
	logger := zerolog.New(io.Discard)
	return NewSyncWorker(db, mirror, redisClient, retry, &logger)
}

func loadTaskStatus(t *testing.T, db *database.DB, id int64) (string, int, sql.NullTime) {
	t.Helper()
	var (
		status     string
		retryCount int
		nextRetry  sql.NullTime
	)
	row := db.QueryRow(`SELECT status, retry_count, next_retry_at FROM sync_queue WHERE id = ?`, id)
	require.NoError(t, row.Scan(&status, &retryCount, &nextRetry))
	return status, retryCount, nextRetry
}

func testSlot(id int64) *models.Slot {
	return &models.Slot{
		ID:        id,
		CoachID:   1,
		BranchID:  1,
		Date:      time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Weekday:   time.Monday,
		StartTime: "16:00",
		EndTime:   "17:00",
		Status:    models.SlotStatusPending,
		PlayerID:  "player-1",
	}
}

func TestProcessTaskSuccess(t *testing.T) {
	db := newTestDB(t)
	mirror := &fakeMirror{}
	w := newTestWorker(db, mirror, nil, RetryPolicy{})
	ctx := context.Background()

	require.NoError(t, w.EnqueueSlotUpsert(ctx, testSlot(1)))

	task, ok := w.tryLocalQueue()
	require.True(t, ok, "expected task in local queue")
	w.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	assert.Equal(t, models.SyncStatusCompleted, status)
	assert.Equal(t, 0, retryCount)
	assert.False(t, nextRetry.Valid, "expected next_retry_at NULL on success")
	assert.Equal(t, 1, mirror.upsertCalls)
}

func TestProcessTaskRetry(t *testing.T) {
	db := newTestDB(t)
	mirror := &fakeMirror{err: errors.New("boom")}
	w := newTestWorker(db, mirror, nil, RetryPolicy{MaxRetries: 3, InitialDelay: time.Second})
	ctx := context.Background()

	require.NoError(t, w.EnqueueSlotStatus(ctx, 7, models.SlotStatusBooked))

	task, ok := w.tryLocalQueue()
	require.True(t, ok)
	w.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	assert.Equal(t, models.SyncStatusRetry, status)
	assert.Equal(t, 1, retryCount)
	assert.True(t, nextRetry.Valid, "expected next_retry_at to be scheduled")
	assert.Equal(t, 1, mirror.statusCalls)
}

func TestProcessTaskExhaustsRetries(t *testing.T) {
	db := newTestDB(t)
	mirror := &fakeMirror{err: errors.New("boom")}
	w := newTestWorker(db, mirror, nil, RetryPolicy{MaxRetries: 1})
	ctx := context.Background()

	require.NoError(t, w.EnqueueSlotStatus(ctx, 7, models.SlotStatusCancelled))

	task, ok := w.tryLocalQueue()
	require.True(t, ok)
	w.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	assert.Equal(t, models.SyncStatusFailed, status)
}

func TestReplaceRangeTask(t *testing.T) {
	db := newTestDB(t)
	mirror := &fakeMirror{}
	w := newTestWorker(db, mirror, nil, RetryPolicy{})
	ctx := context.Background()

	from := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, w.EnqueueReplaceRange(ctx, from, from.AddDate(0, 0, 7)))

	task, ok := w.tryLocalQueue()
	require.True(t, ok)
	w.processTask(ctx, &task)

	assert.Equal(t, 1, mirror.replaceCalls)
	status, _, _ := loadTaskStatus(t, db, task.ID)
	assert.Equal(t, models.SyncStatusCompleted, status)
}

func TestUnknownTaskTypeFails(t *testing.T) {
	db := newTestDB(t)
	mirror := &fakeMirror{}
	w := newTestWorker(db, mirror, nil, RetryPolicy{MaxRetries: 1})
	ctx := context.Background()

	task := models.SyncTask{TaskType: "bogus", Payload: "{}", Status: models.SyncStatusPending, CreatedAt: time.Now()}
	require.NoError(t, db.CreateSyncTask(ctx, &task))

	w.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	assert.Equal(t, models.SyncStatusFailed, status)
}

func TestRedisQueueRoundTrip(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	db := newTestDB(t)
	mirror := &fakeMirror{}
	w := newTestWorker(db, mirror, client, RetryPolicy{})
	ctx := context.Background()

	require.NoError(t, w.EnqueueSlotUpsert(ctx, testSlot(3)))

	// задача ушла в redis, локальная очередь пуста
	_, ok := w.tryLocalQueue()
	assert.False(t, ok)

	task, ok := w.tryRedis(ctx)
	require.True(t, ok, "expected task in redis queue")
	w.processTask(ctx, &task)

	assert.Equal(t, 1, mirror.upsertCalls)
	status, _, _ := loadTaskStatus(t, db, task.ID)
	assert.Equal(t, models.SyncStatusCompleted, status)
}

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, MaxDelay: 10 * time.Second, BackoffFactor: 2}

	assert.Equal(t, time.Second, policy.NextDelay(1))
	assert.Equal(t, 2*time.Second, policy.NextDelay(2))
	assert.Equal(t, 4*time.Second, policy.NextDelay(3))
	assert.Equal(t, 10*time.Second, policy.NextDelay(10), "clamped to max delay")
	assert.Equal(t, time.Second, policy.NextDelay(0), "attempt below 1 treated as first")

	t.Run("jitter stays within bounds", func(t *testing.T) {
		jittered := RetryPolicy{InitialDelay: time.Second, MaxDelay: 10 * time.Second, BackoffFactor: 2, Jitter: 0.5}
		for i := 0; i < 20; i++ {
			d := jittered.NextDelay(3)
			assert.GreaterOrEqual(t, d, 2*time.Second)
			assert.LessOrEqual(t, d, 6*time.Second)
		}
	})
}
