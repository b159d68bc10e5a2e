package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"courtbook/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	sqlite3 "github.com/mattn/go-sqlite3"
)

const slotColumns = `id, coach_id, branch_id, date, weekday, start_time, end_time,
	status, player_id, court, capacity, price, reference, created_at, updated_at, version`

// BatchInsertError reports which batch of a bulk insert failed and how many
// rows were committed before it, so the caller can retry the remainder.
type BatchInsertError struct {
	Batch     int
	Committed int
	Err       error
}

func (e *BatchInsertError) Error() string {
	return fmt.Sprintf("slot batch %d failed after %d committed rows: %v", e.Batch, e.Committed, e.Err)
}

func (e *BatchInsertError) Unwrap() error { return e.Err }

// InsertSlots bulk-inserts slots in batches, one transaction per batch.
func (db *DB) InsertSlots(ctx context.Context, slots []models.Slot, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = models.DefaultSlotBatchSize
	}

	query := db.rebind(`INSERT INTO slots (coach_id, branch_id, date, weekday, start_time, end_time,
            status, player_id, court, capacity, price, reference, created_at, updated_at, version)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	committed := 0
	now := db.now()
	for batch := 0; committed < len(slots); batch++ {
		end := committed + batchSize
		if end > len(slots) {
			end = len(slots)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return committed, &BatchInsertError{Batch: batch, Committed: committed, Err: err}
		}

		for i := committed; i < end; i++ {
			s := &slots[i]
			capacity := s.Capacity
			if capacity == 0 {
				capacity = models.DefaultCapacity
			}
			_, err := tx.ExecContext(ctx, query,
				s.CoachID,
				s.BranchID,
				s.Date.Format(models.DateFormat),
				int(s.Weekday),
				s.StartTime,
				s.EndTime,
				s.Status,
				s.PlayerID,
				s.Court,
				capacity,
				s.Price,
				s.Reference,
				now,
				now,
				1,
			)
			if err != nil {
				_ = tx.Rollback()
				return committed, &BatchInsertError{Batch: batch, Committed: committed, Err: err}
			}
		}

		if err := tx.Commit(); err != nil {
			return committed, &BatchInsertError{Batch: batch, Committed: committed, Err: err}
		}
		committed = end
	}
	return committed, nil
}

// DeleteAvailableSlots removes untouched generated slots in [from, to).
// Pending and booked slots are never deleted by regeneration.
func (db *DB) DeleteAvailableSlots(ctx context.Context, coachID int64, from, to time.Time) (int64, error) {
	query := db.rebind(`DELETE FROM slots
        WHERE coach_id = ? AND date >= ? AND date < ? AND status = ?`)

	result, err := db.ExecContext(ctx, query,
		coachID,
		from.Format(models.DateFormat),
		to.Format(models.DateFormat),
		models.SlotStatusAvailable,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete available slots: %w", err)
	}
	deleted, _ := result.RowsAffected()
	return deleted, nil
}

// CreateClaimedSlot inserts an admin- or request-created slot already claimed
// by a player. The partial unique index on (coach_id, date, start_time)
// converts a duplicate insert race into ErrSlotNotAvailable.
func (db *DB) CreateClaimedSlot(ctx context.Context, slot *models.Slot) error {
	query := db.rebind(`INSERT INTO slots (coach_id, branch_id, date, weekday, start_time, end_time,
            status, player_id, court, capacity, price, reference, created_at, updated_at, version)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	now := db.now()
	capacity := slot.Capacity
	if capacity == 0 {
		capacity = models.DefaultCapacity
	}
	id, err := db.insertReturningID(ctx, query,
		slot.CoachID,
		slot.BranchID,
		slot.Date.Format(models.DateFormat),
		int(slot.Weekday),
		slot.StartTime,
		slot.EndTime,
		models.SlotStatusPending,
		slot.PlayerID,
		slot.Court,
		capacity,
		slot.Price,
		slot.Reference,
		now,
		now,
		1,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlotNotAvailable
		}
		return fmt.Errorf("failed to create claimed slot: %w", err)
	}

	slot.ID = id
	slot.Status = models.SlotStatusPending
	slot.Capacity = capacity
	slot.CreatedAt = now
	slot.UpdatedAt = now
	slot.Version = 1
	return nil
}

func (db *DB) GetSlot(ctx context.Context, id int64) (*models.Slot, error) {
	query := db.rebind(`SELECT ` + slotColumns + ` FROM slots WHERE id = ?`)
	slot, err := db.scanSlotRow(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}
	return slot, nil
}

// FindSlot locates the slot at a coach's exact start time, cancelled excluded.
func (db *DB) FindSlot(ctx context.Context, coachID int64, date time.Time, startTime string) (*models.Slot, error) {
	query := db.rebind(`SELECT ` + slotColumns + ` FROM slots
        WHERE coach_id = ? AND date = ? AND start_time = ? AND status != ?`)

	slot, err := db.scanSlotRow(db.QueryRowContext(ctx, query,
		coachID, date.Format(models.DateFormat), startTime, models.SlotStatusCancelled))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find slot: %w", err)
	}
	return slot, nil
}

// GetBlockingSlots returns the pending and booked slots for a coach's date.
// Cancelled and available slots never conflict with a booking request.
func (db *DB) GetBlockingSlots(ctx context.Context, coachID int64, date time.Time) ([]models.Slot, error) {
	query := db.rebind(`SELECT ` + slotColumns + ` FROM slots
        WHERE coach_id = ? AND date = ? AND status IN (?, ?) ORDER BY start_time`)

	return db.querySlots(ctx, query,
		coachID, date.Format(models.DateFormat),
		models.SlotStatusPending, models.SlotStatusBooked)
}

// GetSlotsForDay returns every non-cancelled slot for a coach's date.
func (db *DB) GetSlotsForDay(ctx context.Context, coachID int64, date time.Time) ([]models.Slot, error) {
	query := db.rebind(`SELECT ` + slotColumns + ` FROM slots
        WHERE coach_id = ? AND date = ? AND status != ? ORDER BY start_time`)

	return db.querySlots(ctx, query,
		coachID, date.Format(models.DateFormat), models.SlotStatusCancelled)
}

// GetSlotsByDateRange returns non-cancelled slots in [from, to) for reporting.
func (db *DB) GetSlotsByDateRange(ctx context.Context, from, to time.Time) ([]models.Slot, error) {
	query := db.rebind(`SELECT ` + slotColumns + ` FROM slots
        WHERE date >= ? AND date < ? AND status != ? ORDER BY date, coach_id, start_time`)

	return db.querySlots(ctx, query,
		from.Format(models.DateFormat), to.Format(models.DateFormat), models.SlotStatusCancelled)
}

// ClaimSlot moves an available slot to pending for a player. The predicate on
// the current status is the compare-and-swap preventing double booking: the
// affected-row count, not any prior read, decides success.
func (db *DB) ClaimSlot(ctx context.Context, id int64, playerID, reference string) (*models.Slot, error) {
	query := db.rebind(`UPDATE slots
        SET status = ?, player_id = ?, reference = ?, version = version + 1, updated_at = ?
        WHERE id = ? AND status = ?`)

	result, err := db.ExecContext(ctx, query,
		models.SlotStatusPending, playerID, reference, db.now(),
		id, models.SlotStatusAvailable,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to claim slot: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, db.resolveGuardFailure(ctx, id)
	}
	return db.GetSlot(ctx, id)
}

// ConfirmSlot moves a pending slot to booked once payment completes.
// Guarded on both status and the claiming player.
func (db *DB) ConfirmSlot(ctx context.Context, id int64, playerID string) (*models.Slot, error) {
	query := db.rebind(`UPDATE slots
        SET status = ?, version = version + 1, updated_at = ?
        WHERE id = ? AND status = ? AND player_id = ?`)

	result, err := db.ExecContext(ctx, query,
		models.SlotStatusBooked, db.now(),
		id, models.SlotStatusPending, playerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm slot: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, db.resolveGuardFailure(ctx, id)
	}
	return db.GetSlot(ctx, id)
}

// ReleaseSlot returns a pending or booked slot to available and clears the
// player. An empty playerID is the administrative override.
func (db *DB) ReleaseSlot(ctx context.Context, id int64, playerID string) (*models.Slot, error) {
	query := db.rebind(`UPDATE slots
        SET status = ?, player_id = '', reference = '', version = version + 1, updated_at = ?
        WHERE id = ? AND status IN (?, ?) AND (? = '' OR player_id = ?)`)

	result, err := db.ExecContext(ctx, query,
		models.SlotStatusAvailable, db.now(),
		id, models.SlotStatusPending, models.SlotStatusBooked,
		playerID, playerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to release slot: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, db.resolveGuardFailure(ctx, id)
	}
	return db.GetSlot(ctx, id)
}

// CancelSlot hard-cancels a slot. Terminal: the row never reopens; the
// generator may emit a replacement on the next run.
func (db *DB) CancelSlot(ctx context.Context, id int64) (*models.Slot, error) {
	query := db.rebind(`UPDATE slots
        SET status = ?, version = version + 1, updated_at = ?
        WHERE id = ? AND status != ?`)

	result, err := db.ExecContext(ctx, query,
		models.SlotStatusCancelled, db.now(),
		id, models.SlotStatusCancelled,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel slot: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, db.resolveGuardFailure(ctx, id)
	}
	return db.GetSlot(ctx, id)
}

// resolveGuardFailure distinguishes a missing row from a lost race.
func (db *DB) resolveGuardFailure(ctx context.Context, id int64) error {
	if _, err := db.GetSlot(ctx, id); errors.Is(err, ErrSlotNotFound) {
		return ErrSlotNotFound
	}
	return ErrSlotNotAvailable
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (db *DB) scanSlotRow(row rowScanner) (*models.Slot, error) {
	var (
		slot    models.Slot
		dateStr string
		weekday int
	)
	err := row.Scan(
		&slot.ID,
		&slot.CoachID,
		&slot.BranchID,
		&dateStr,
		&weekday,
		&slot.StartTime,
		&slot.EndTime,
		&slot.Status,
		&slot.PlayerID,
		&slot.Court,
		&slot.Capacity,
		&slot.Price,
		&slot.Reference,
		&slot.CreatedAt,
		&slot.UpdatedAt,
		&slot.Version,
	)
	if err != nil {
		return nil, err
	}

	slot.Date, err = time.Parse(models.DateFormat, dateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse slot date %s: %w", dateStr, err)
	}
	slot.Weekday = time.Weekday(weekday)
	return &slot, nil
}

func (db *DB) querySlots(ctx context.Context, query string, args ...any) ([]models.Slot, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query slots: %w", err)
	}
	defer rows.Close()

	var slots []models.Slot
	for rows.Next() {
		slot, err := db.scanSlotRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slots = append(slots, *slot)
	}
	return slots, rows.Err()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
