package database

import (
	"context"
	"fmt"
	"time"

	"courtbook/internal/models"
)

func (db *DB) CreateSyncTask(ctx context.Context, task *models.SyncTask) error {
	query := db.rebind(`INSERT INTO sync_queue (task_type, slot_id, payload, status, retry_count, last_error, created_at, next_retry_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)

	now := db.now()
	id, err := db.insertReturningID(ctx, query,
		task.TaskType,
		task.SlotID,
		task.Payload,
		task.Status,
		task.RetryCount,
		task.LastError,
		now,
		task.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create sync task: %w", err)
	}

	task.ID = id
	task.CreatedAt = now
	return nil
}

func (db *DB) GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error) {
	query := db.rebind(`SELECT id, task_type, slot_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at
        FROM sync_queue
        WHERE status IN (?, ?) AND (next_retry_at IS NULL OR next_retry_at <= ?)
        ORDER BY created_at ASC LIMIT ?`)

	rows, err := db.QueryContext(ctx, query,
		models.SyncStatusPending, models.SyncStatusRetry, time.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending sync tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.SyncTask
	for rows.Next() {
		var t models.SyncTask
		err := rows.Scan(
			&t.ID, &t.TaskType, &t.SlotID, &t.Payload, &t.Status,
			&t.RetryCount, &t.LastError, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (db *DB) UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	now := db.now()

	var (
		query string
		args  []any
	)
	switch status {
	case models.SyncStatusRetry:
		query = db.rebind(`UPDATE sync_queue
            SET status = ?, retry_count = retry_count + 1, last_error = ?, next_retry_at = ?
            WHERE id = ?`)
		args = []any{status, errMsg, nextRetryAt, id}
	case models.SyncStatusCompleted:
		query = db.rebind(`UPDATE sync_queue
            SET status = ?, last_error = NULL, processed_at = ?, next_retry_at = NULL
            WHERE id = ?`)
		args = []any{status, now, id}
	default:
		query = db.rebind(`UPDATE sync_queue
            SET status = ?, last_error = ?, processed_at = ?
            WHERE id = ?`)
		args = []any{status, errMsg, now, id}
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update sync task %d: %w", id, err)
	}
	return nil
}
