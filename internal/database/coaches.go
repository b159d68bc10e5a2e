package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"courtbook/internal/models"
)

// SetCoaches primes the in-memory coach cache from seed data.
func (db *DB) SetCoaches(coaches []models.Coach) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.coachCache = make(map[int64]models.Coach, len(coaches))
	for _, c := range coaches {
		db.coachCache[c.ID] = c
	}
}

// GetCoaches returns cached coaches sorted by sort order.
func (db *DB) GetCoaches() []models.Coach {
	db.mu.RLock()
	coaches := make([]models.Coach, 0, len(db.coachCache))
	for _, c := range db.coachCache {
		coaches = append(coaches, c)
	}
	db.mu.RUnlock()

	sort.Slice(coaches, func(i, j int) bool {
		if coaches[i].SortOrder == coaches[j].SortOrder {
			return coaches[i].ID < coaches[j].ID
		}
		return coaches[i].SortOrder < coaches[j].SortOrder
	})
	return coaches
}

func (db *DB) CreateOrUpdateCoach(ctx context.Context, coach *models.Coach) error {
	query := db.rebind(`INSERT INTO coaches (id, name, branch_id, specialty, is_active, sort_order, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            name = excluded.name,
            branch_id = excluded.branch_id,
            specialty = excluded.specialty,
            is_active = excluded.is_active,
            sort_order = excluded.sort_order,
            updated_at = excluded.updated_at`)

	now := db.now()
	_, err := db.ExecContext(ctx, query,
		coach.ID,
		coach.Name,
		coach.BranchID,
		coach.Specialty,
		coach.IsActive,
		coach.SortOrder,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert coach: %w", err)
	}

	db.mu.Lock()
	db.coachCache[coach.ID] = *coach
	db.mu.Unlock()

	return nil
}

func (db *DB) GetCoachByID(ctx context.Context, id int64) (*models.Coach, error) {
	db.mu.RLock()
	cached, ok := db.coachCache[id]
	db.mu.RUnlock()
	if ok {
		return &cached, nil
	}

	query := db.rebind(`SELECT id, name, branch_id, specialty, is_active, sort_order, created_at, updated_at
        FROM coaches WHERE id = ?`)

	var coach models.Coach
	err := db.QueryRowContext(ctx, query, id).Scan(
		&coach.ID,
		&coach.Name,
		&coach.BranchID,
		&coach.Specialty,
		&coach.IsActive,
		&coach.SortOrder,
		&coach.CreatedAt,
		&coach.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("coach %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get coach: %w", err)
	}
	return &coach, nil
}

func (db *DB) GetActiveCoaches(ctx context.Context) ([]models.Coach, error) {
	query := db.rebind(`SELECT id, name, branch_id, specialty, is_active, sort_order, created_at, updated_at
        FROM coaches WHERE is_active = ? ORDER BY sort_order, id`)

	rows, err := db.QueryContext(ctx, query, true)
	if err != nil {
		return nil, fmt.Errorf("failed to get active coaches: %w", err)
	}
	defer rows.Close()

	var coaches []models.Coach
	for rows.Next() {
		var coach models.Coach
		err := rows.Scan(
			&coach.ID,
			&coach.Name,
			&coach.BranchID,
			&coach.Specialty,
			&coach.IsActive,
			&coach.SortOrder,
			&coach.CreatedAt,
			&coach.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan coach: %w", err)
		}
		coaches = append(coaches, coach)
	}
	return coaches, rows.Err()
}
