package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"courtbook/internal/domain"
	"courtbook/internal/models"
)

// slotTaskPayload is persisted in SyncTask.Payload as JSON.
type slotTaskPayload struct {
	SlotID int64        `json:"slot_id,omitempty"`
	Slot   *models.Slot `json:"slot,omitempty"`
	Status string       `json:"status,omitempty"`
	From   string       `json:"from,omitempty"`
	To     string       `json:"to,omitempty"`
}

// SyncWorker consumes sync_queue tasks and applies them to the external
// schedule mirror. The booking path never blocks on the mirror: tasks are
// persisted first, then scheduled via redis or the in-memory queue, and the
// DB poll picks up anything dropped in between.
type SyncWorker struct {
	repo          domain.Repository
	mirror        domain.ScheduleMirror
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.SyncTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	log           zerolog.Logger
}

// NewSyncWorker builds a worker with sane defaults.
func NewSyncWorker(repo domain.Repository, mirror domain.ScheduleMirror, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *SyncWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}

	return &SyncWorker{
		repo:          repo,
		mirror:        mirror,
		redis:         redisClient,
		retryPolicy:   retry,
		queue:         make(chan models.SyncTask, models.WorkerQueueSize),
		redisQueueKey: "mirror:queue",
		deadLetterKey: "mirror:deadletter",
		pollInterval:  2 * time.Second,
		batchSize:     20,
		log:           logger.With().Str("component", "sync_worker").Logger(),
	}
}

// EnqueueSlotUpsert schedules a full slot row push to the mirror.
func (w *SyncWorker) EnqueueSlotUpsert(ctx context.Context, slot *models.Slot) error {
	if slot == nil || slot.ID == 0 {
		return errors.New("slot id is required")
	}
	return w.enqueue(ctx, models.SyncTaskUpsertSlot, slotTaskPayload{SlotID: slot.ID, Slot: slot})
}

// EnqueueSlotStatus schedules a status-only cell update.
func (w *SyncWorker) EnqueueSlotStatus(ctx context.Context, slotID int64, status string) error {
	if slotID == 0 || status == "" {
		return errors.New("slot id and status are required")
	}
	return w.enqueue(ctx, models.SyncTaskSlotStatus, slotTaskPayload{SlotID: slotID, Status: status})
}

// EnqueueReplaceRange schedules a full mirror rewrite for [from, to).
func (w *SyncWorker) EnqueueReplaceRange(ctx context.Context, from, to time.Time) error {
	return w.enqueue(ctx, models.SyncTaskReplaceRange, slotTaskPayload{
		From: from.Format(models.DateFormat),
		To:   to.Format(models.DateFormat),
	})
}

func (w *SyncWorker) enqueue(ctx context.Context, taskType string, payload slotTaskPayload) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := models.SyncTask{
		TaskType:  taskType,
		SlotID:    payload.SlotID,
		Payload:   string(payloadBytes),
		Status:    models.SyncStatusPending,
		CreatedAt: time.Now(),
	}

	if err := w.repo.CreateSyncTask(ctx, &task); err != nil {
		return fmt.Errorf("persist sync task: %w", err)
	}

	// Try redis first for durability.
	if w.redis != nil {
		if err := w.pushRedis(ctx, task); err != nil {
			w.log.Warn().Err(err).Msg("redis push failed, fallback to memory queue")
		} else {
			return nil
		}
	}

	// Fallback to in-memory queue if redis missing or failed.
	select {
	case w.queue <- task:
	default:
		w.log.Warn().Int64("task_id", task.ID).Msg("in-memory queue full, task dropped to polling")
	}

	return nil
}

// Start launches main loop; stops when ctx is done.
func (w *SyncWorker) Start(ctx context.Context) {
	w.log.Info().Msg("sync worker started")
	defer w.log.Info().Msg("sync worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		tasks, err := w.repo.GetPendingSyncTasks(ctx, w.batchSize)
		if err != nil {
			w.log.Error().Err(err).Msg("fetch pending tasks failed")
			time.Sleep(w.pollInterval)
			continue
		}
		if len(tasks) == 0 {
			time.Sleep(w.pollInterval)
			continue
		}

		for i := range tasks {
			w.processTask(ctx, &tasks[i])
		}
	}
}

func (w *SyncWorker) tryLocalQueue() (models.SyncTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.SyncTask{}, false
	}
}

func (w *SyncWorker) tryRedis(ctx context.Context) (models.SyncTask, bool) {
	if w.redis == nil {
		return models.SyncTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redis.Nil) {
			return models.SyncTask{}, false
		}
		w.log.Error().Err(err).Msg("redis BRPOP error")
		return models.SyncTask{}, false
	}
	if len(res) != 2 {
		return models.SyncTask{}, false
	}
	var task models.SyncTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.log.Error().Err(err).Msg("decode redis task failed")
		return models.SyncTask{}, false
	}
	return task, true
}

func (w *SyncWorker) processTask(ctx context.Context, task *models.SyncTask) {
	var payload slotTaskPayload
	if err := json.Unmarshal([]byte(task.Payload), &payload); err != nil {
		w.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	if err := w.handleTask(ctx, task.TaskType, payload); err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	if err := w.repo.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusCompleted, "", nil); err != nil {
		w.log.Error().Err(err).Int64("task_id", task.ID).Msg("mark completed failed")
	}
}

func (w *SyncWorker) handleTask(ctx context.Context, taskType string, payload slotTaskPayload) error {
	switch taskType {
	case models.SyncTaskUpsertSlot:
		if payload.Slot == nil {
			return errors.New("slot payload missing")
		}
		return w.mirror.UpsertSlotRow(ctx, payload.Slot)
	case models.SyncTaskSlotStatus:
		if payload.SlotID == 0 || payload.Status == "" {
			return errors.New("slot id or status missing")
		}
		return w.mirror.UpdateSlotStatus(ctx, payload.SlotID, payload.Status)
	case models.SyncTaskReplaceRange:
		return w.replaceRange(ctx, payload)
	default:
		return fmt.Errorf("unknown task type: %s", taskType)
	}
}

func (w *SyncWorker) replaceRange(ctx context.Context, payload slotTaskPayload) error {
	from, err := time.ParseInLocation(models.DateFormat, payload.From, time.UTC)
	if err != nil {
		return fmt.Errorf("invalid from date: %w", err)
	}
	to, err := time.ParseInLocation(models.DateFormat, payload.To, time.UTC)
	if err != nil {
		return fmt.Errorf("invalid to date: %w", err)
	}

	slots, err := w.repo.GetSlotsByDateRange(ctx, from, to)
	if err != nil {
		return fmt.Errorf("load slots: %w", err)
	}
	coaches := w.repo.GetCoaches()

	return w.mirror.ReplaceScheduleRange(ctx, from, to, slots, coaches)
}

func (w *SyncWorker) retryOrFail(ctx context.Context, task *models.SyncTask, cause error) {
	attempt := task.RetryCount + 1
	if attempt >= w.retryPolicy.MaxRetries {
		if err := w.repo.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusFailed, cause.Error(), nil); err != nil {
			w.log.Error().Err(err).Int64("task_id", task.ID).Msg("mark failed failed")
		}
		w.pushDeadLetter(ctx, task)
		return
	}

	nextDelay := w.retryPolicy.NextDelay(attempt)
	nextTime := time.Now().Add(nextDelay)
	if err := w.repo.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusRetry, cause.Error(), &nextTime); err != nil {
		w.log.Error().Err(err).Int64("task_id", task.ID).Msg("mark retry failed")
	}
}

func (w *SyncWorker) failTask(ctx context.Context, task *models.SyncTask, err error) {
	if uerr := w.repo.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusFailed, err.Error(), nil); uerr != nil {
		w.log.Error().Err(uerr).Int64("task_id", task.ID).Msg("mark failed failed")
	}
	w.pushDeadLetter(ctx, task)
}

func (w *SyncWorker) pushRedis(ctx context.Context, task models.SyncTask) error {
	if w.redis == nil {
		return errors.New("redis client is nil")
	}
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.redisQueueKey, data).Err()
}

func (w *SyncWorker) pushDeadLetter(ctx context.Context, task *models.SyncTask) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.log.Error().Err(err).Int64("task_id", task.ID).Msg("encode deadletter failed")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.log.Error().Err(err).Int64("task_id", task.ID).Msg("deadletter push failed")
	}
}
