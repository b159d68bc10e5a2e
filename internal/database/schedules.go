package database

import (
	"context"
	"fmt"
	"time"

	"courtbook/internal/models"
)

func (db *DB) CreateSchedule(ctx context.Context, schedule *models.CoachSchedule) error {
	if err := schedule.Validate(); err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}

	query := db.rebind(`INSERT INTO coach_schedules (coach_id, weekday, start_time, end_time, session_minutes, is_available, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)

	now := db.now()
	id, err := db.insertReturningID(ctx, query,
		schedule.CoachID,
		schedule.Weekday,
		schedule.StartTime,
		schedule.EndTime,
		schedule.SessionMinutes,
		schedule.IsAvailable,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create schedule: %w", err)
	}

	schedule.ID = id
	schedule.CreatedAt = now
	schedule.UpdatedAt = now
	return nil
}

func (db *DB) UpdateSchedule(ctx context.Context, schedule *models.CoachSchedule) error {
	if err := schedule.Validate(); err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}

	query := db.rebind(`UPDATE coach_schedules
        SET weekday = ?, start_time = ?, end_time = ?, session_minutes = ?, is_available = ?, updated_at = ?
        WHERE id = ?`)

	result, err := db.ExecContext(ctx, query,
		schedule.Weekday,
		schedule.StartTime,
		schedule.EndTime,
		schedule.SessionMinutes,
		schedule.IsAvailable,
		db.now(),
		schedule.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("schedule %d not found", schedule.ID)
	}
	return nil
}

func (db *DB) DeleteSchedule(ctx context.Context, id int64) error {
	query := db.rebind(`DELETE FROM coach_schedules WHERE id = ?`)
	result, err := db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("schedule %d not found", id)
	}
	return nil
}

func (db *DB) GetSchedulesByCoach(ctx context.Context, coachID int64) ([]models.CoachSchedule, error) {
	query := db.rebind(`SELECT id, coach_id, weekday, start_time, end_time, session_minutes, is_available, created_at, updated_at
        FROM coach_schedules WHERE coach_id = ? ORDER BY weekday, start_time`)
	return db.querySchedules(ctx, query, coachID)
}

// GetSchedulesForDay returns the recurring windows matching one weekday.
func (db *DB) GetSchedulesForDay(ctx context.Context, coachID int64, weekday time.Weekday) ([]models.CoachSchedule, error) {
	query := db.rebind(`SELECT id, coach_id, weekday, start_time, end_time, session_minutes, is_available, created_at, updated_at
        FROM coach_schedules WHERE coach_id = ? AND weekday = ? ORDER BY start_time`)
	return db.querySchedules(ctx, query, coachID, int(weekday))
}

func (db *DB) GetAllSchedules(ctx context.Context) ([]models.CoachSchedule, error) {
	query := `SELECT id, coach_id, weekday, start_time, end_time, session_minutes, is_available, created_at, updated_at
        FROM coach_schedules ORDER BY coach_id, weekday, start_time`
	return db.querySchedules(ctx, query)
}

func (db *DB) querySchedules(ctx context.Context, query string, args ...any) ([]models.CoachSchedule, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	defer rows.Close()

	var schedules []models.CoachSchedule
	for rows.Next() {
		var s models.CoachSchedule
		var weekday int
		err := rows.Scan(
			&s.ID,
			&s.CoachID,
			&weekday,
			&s.StartTime,
			&s.EndTime,
			&s.SessionMinutes,
			&s.IsAvailable,
			&s.CreatedAt,
			&s.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		s.Weekday = time.Weekday(weekday)
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}
