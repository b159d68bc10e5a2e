package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"courtbook/internal/config"
	"courtbook/internal/models"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// DB wraps database/sql with the slot, schedule and coach queries.
// The driver is sqlite3 for local runs and tests, pgx for the hosted
// Postgres the service fronts in production.
type DB struct {
	*sql.DB
	driver     string
	log        zerolog.Logger
	mu         sync.RWMutex
	coachCache map[int64]models.Coach
}

// NewDB opens a sqlite database at path. Kept for tests and scripts.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	return Open(config.DatabaseConfig{Driver: "sqlite3", Path: path}, logger)
}

// Open connects according to config and prepares the schema.
func Open(cfg config.DatabaseConfig, logger *zerolog.Logger) (*DB, error) {
	var (
		sqlDB *sql.DB
		err   error
	)

	switch cfg.Driver {
	case "sqlite3":
		if cfg.Path != ":memory:" {
			dir := filepath.Dir(cfg.Path)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		sqlDB, err = sql.Open("sqlite3", cfg.Path+"?_busy_timeout=5000")
	case "postgres":
		sqlDB, err = sql.Open("pgx", cfg.Postgres.DSN())
		if err == nil && cfg.Postgres.MaxConnections > 0 {
			sqlDB.SetMaxOpenConns(cfg.Postgres.MaxConnections)
		}
	default:
		return nil, fmt.Errorf("unknown database driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{
		DB:         sqlDB,
		driver:     cfg.Driver,
		log:        logger.With().Str("component", "database").Logger(),
		coachCache: make(map[int64]models.Coach),
	}

	// The hosted Postgres schema is managed externally; sqlite is ours.
	if cfg.Driver == "sqlite3" {
		if err := db.createTables(); err != nil {
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
	}

	if err := db.probeSlotSchema(context.Background()); err != nil {
		return nil, err
	}

	db.log.Info().Str("driver", cfg.Driver).Msg("database initialized")
	return db, nil
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS coaches (
            id INTEGER PRIMARY KEY,
            name TEXT NOT NULL,
            branch_id INTEGER NOT NULL DEFAULT 0,
            specialty TEXT NOT NULL DEFAULT '',
            is_active BOOLEAN NOT NULL DEFAULT 1,
            sort_order INTEGER NOT NULL DEFAULT 0,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS coach_schedules (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            coach_id INTEGER NOT NULL,
            weekday INTEGER NOT NULL,
            start_time TEXT NOT NULL,
            end_time TEXT NOT NULL,
            session_minutes INTEGER NOT NULL,
            is_available BOOLEAN NOT NULL DEFAULT 1,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS slots (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            coach_id INTEGER NOT NULL,
            branch_id INTEGER NOT NULL DEFAULT 0,
            date TEXT NOT NULL,
            weekday INTEGER NOT NULL,
            start_time TEXT NOT NULL,
            end_time TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'available',
            player_id TEXT NOT NULL DEFAULT '',
            court TEXT NOT NULL DEFAULT '',
            capacity INTEGER NOT NULL DEFAULT 1,
            price REAL NOT NULL DEFAULT 0,
            reference TEXT NOT NULL DEFAULT '',
            created_at DATETIME,
            updated_at DATETIME,
            version INTEGER NOT NULL DEFAULT 1
        )`,
		`CREATE TABLE IF NOT EXISTS sync_queue (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_type TEXT NOT NULL,
            slot_id INTEGER NOT NULL DEFAULT 0,
            payload TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		// Одна не-отменённая бронь на (тренер, дата, начало)
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_slots_coach_date_start
            ON slots(coach_id, date, start_time) WHERE status != 'cancelled'`,

		`CREATE INDEX IF NOT EXISTS idx_slots_date ON slots(date)`,
		`CREATE INDEX IF NOT EXISTS idx_slots_status ON slots(status)`,
		`CREATE INDEX IF NOT EXISTS idx_slots_coach_id ON slots(coach_id)`,
		`CREATE INDEX IF NOT EXISTS idx_schedules_coach_id ON coach_schedules(coach_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// probeSlotSchema verifies the slots table exposes the columns the queries
// rely on. A hosted database drifting from the expected shape surfaces here
// instead of as scan errors mid-request.
func (db *DB) probeSlotSchema(ctx context.Context) error {
	query := db.rebind(`SELECT id, coach_id, branch_id, date, weekday, start_time, end_time,
	       status, player_id, court, capacity, price, reference, version
        FROM slots LIMIT 1`)

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		db.log.Error().Err(err).Msg("slot schema probe failed")
		return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	return rows.Close()
}

// rebind converts ?-placeholders to the $n form Postgres expects.
func (db *DB) rebind(query string) string {
	if db.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// insertReturningID runs an already-rebound INSERT and reports the new row id.
// pgx не поддерживает LastInsertId, поэтому на postgres берём RETURNING.
func (db *DB) insertReturningID(ctx context.Context, query string, args ...any) (int64, error) {
	if db.driver == "postgres" {
		var id int64
		err := db.QueryRowContext(ctx, query+" RETURNING id", args...).Scan(&id)
		return id, err
	}

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (db *DB) now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

func (db *DB) Close() error {
	return db.DB.Close()
}
